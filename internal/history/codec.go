package history

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"google.golang.org/protobuf/encoding/protowire"

	"versync/internal/clock"
	"versync/internal/version"
)

// Magic prefixes every history file.
const Magic = "VSH1"

var (
	// ErrBadMagic is returned when data does not start with Magic.
	ErrBadMagic = errors.New("not a history file")

	// ErrCorrupt is returned when the payload cannot be decoded.
	ErrCorrupt = errors.New("corrupt history file")
)

// File is the content of one history file.
type File struct {
	// Machine is the uploader.
	Machine string

	// Base is the version Headers follow; nil means Headers start the branch.
	Base *version.Header

	// Headers are the uploaded versions, oldest first.
	Headers version.Branch
}

const (
	fileMachine = 1
	fileBase    = 2
	fileHeaders = 3

	headerOwner     = 1
	headerEntry     = 2
	headerTimestamp = 3

	entryMachine = 1
	entryCounter = 2
)

// Encode serializes f.
func Encode(f File) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, fileMachine, protowire.BytesType)
	msg = protowire.AppendString(msg, f.Machine)
	if f.Base != nil {
		msg = protowire.AppendTag(msg, fileBase, protowire.BytesType)
		msg = protowire.AppendBytes(msg, appendHeader(nil, *f.Base))
	}
	for _, h := range f.Headers {
		msg = protowire.AppendTag(msg, fileHeaders, protowire.BytesType)
		msg = protowire.AppendBytes(msg, appendHeader(nil, h))
	}

	out := make([]byte, 0, len(Magic)+snappy.MaxEncodedLen(len(msg)))
	out = append(out, Magic...)
	return append(out, snappy.Encode(nil, msg)...)
}

func appendHeader(b []byte, h version.Header) []byte {
	b = protowire.AppendTag(b, headerOwner, protowire.BytesType)
	b = protowire.AppendString(b, h.Owner)
	for _, machine := range h.Clock.Keys() {
		var entry []byte
		entry = protowire.AppendTag(entry, entryMachine, protowire.BytesType)
		entry = protowire.AppendString(entry, machine)
		entry = protowire.AppendTag(entry, entryCounter, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(h.Clock.Get(machine)))

		b = protowire.AppendTag(b, headerEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	b = protowire.AppendTag(b, headerTimestamp, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(h.Timestamp))
}

// Decode parses a history file. Unknown fields are skipped.
func Decode(data []byte) (File, error) {
	if !bytes.HasPrefix(data, []byte(Magic)) {
		return File{}, ErrBadMagic
	}
	msg, err := snappy.Decode(nil, data[len(Magic):])
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var f File
	err = walk(msg, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		switch {
		case num == fileMachine && typ == protowire.BytesType:
			f.Machine = string(v)
		case num == fileBase && typ == protowire.BytesType:
			h, err := decodeHeader(v)
			if err != nil {
				return fmt.Errorf("base: %w", err)
			}
			f.Base = &h
		case num == fileHeaders && typ == protowire.BytesType:
			h, err := decodeHeader(v)
			if err != nil {
				return fmt.Errorf("header %d: %w", len(f.Headers), err)
			}
			f.Headers = append(f.Headers, h)
		}
		return nil
	})
	if err != nil {
		return File{}, err
	}
	if f.Machine == "" {
		return File{}, fmt.Errorf("%w: missing machine", ErrCorrupt)
	}
	if f.Headers == nil {
		f.Headers = version.Branch{}
	}
	return f, nil
}

func decodeHeader(msg []byte) (version.Header, error) {
	h := version.Header{Clock: clock.New()}
	err := walk(msg, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == headerOwner && typ == protowire.BytesType:
			h.Owner = string(v)
		case num == headerTimestamp && typ == protowire.VarintType:
			h.Timestamp = int64(n)
		case num == headerEntry && typ == protowire.BytesType:
			var (
				machine string
				counter int64
			)
			err := walk(v, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
				switch {
				case num == entryMachine && typ == protowire.BytesType:
					machine = string(v)
				case num == entryCounter && typ == protowire.VarintType:
					counter = int64(n)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if machine == "" {
				return fmt.Errorf("%w: clock entry without machine", ErrCorrupt)
			}
			h.Clock.Set(machine, counter)
		}
		return nil
	})
	if err != nil {
		return version.Header{}, err
	}
	if h.Owner == "" {
		return version.Header{}, fmt.Errorf("%w: header without owner", ErrCorrupt)
	}
	return h, nil
}

// walk calls fn for every field of msg. Bytes fields pass their payload,
// varint fields their value; other wire types are skipped.
func walk(msg []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		msg = msg[n:]

		var (
			payload []byte
			value   uint64
		)
		switch typ {
		case protowire.BytesType:
			payload, n = protowire.ConsumeBytes(msg)
		case protowire.VarintType:
			value, n = protowire.ConsumeVarint(msg)
		default:
			n = protowire.ConsumeFieldValue(num, typ, msg)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrCorrupt, num, protowire.ParseError(n))
		}
		msg = msg[n:]

		if typ == protowire.BytesType || typ == protowire.VarintType {
			if err := fn(num, typ, payload, value); err != nil {
				return err
			}
		}
	}
	return nil
}
