package history

import (
	"fmt"
	"strconv"
	"strings"
)

// Prefix starts every history file name.
const Prefix = "history-"

// Name returns the file name of a machine's seq-th upload.
func Name(machine string, seq uint64) string {
	return fmt.Sprintf("%s%s-%010d", Prefix, machine, seq)
}

// MachinePrefix returns the name prefix of all files of machine.
func MachinePrefix(machine string) string {
	return Prefix + machine + "-"
}

// ParseName is the inverse of Name.
func ParseName(name string) (machine string, seq uint64, err error) {
	rest, ok := strings.CutPrefix(name, Prefix)
	if !ok {
		return "", 0, fmt.Errorf("invalid history file name %q", name)
	}
	i := strings.LastIndexByte(rest, '-')
	if i <= 0 {
		return "", 0, fmt.Errorf("invalid history file name %q", name)
	}
	seq, err = strconv.ParseUint(rest[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid sequence in %q: %w", name, err)
	}
	return rest[:i], seq, nil
}
