package history

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"versync/internal/version"
)

// WriteText writes one canonical header per line.
func WriteText(w io.Writer, b version.Branch) error {
	for _, h := range b {
		if _, err := fmt.Fprintln(w, h.String()); err != nil {
			return err
		}
	}
	return nil
}

// ReadText parses the format written by WriteText. Blank lines and lines
// starting with # are ignored.
func ReadText(r io.Reader) (version.Branch, error) {
	b := version.Branch{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		h, err := version.ParseHeader(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b = append(b, h)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

// MarshalText is WriteText into a byte slice.
func MarshalText(b version.Branch) []byte {
	var buf bytes.Buffer
	_ = WriteText(&buf, b)
	return buf.Bytes()
}
