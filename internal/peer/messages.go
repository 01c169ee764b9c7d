package peer

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// message is implemented by every request and response.
type message interface {
	marshal() []byte
	unmarshal(data []byte) error
}

// ListRequest asks for all keys starting with Prefix.
type ListRequest struct {
	Prefix string // 1
}

// ListResponse carries the matching keys.
type ListResponse struct {
	Keys []string // 1
}

// ReadRequest asks for the content of Key.
type ReadRequest struct {
	Key string // 1
}

// ReadResponse carries the content.
type ReadResponse struct {
	Data []byte // 1
}

// WriteRequest stores Data under Key.
type WriteRequest struct {
	Key  string // 1
	Data []byte // 2
}

// WriteResponse is empty.
type WriteResponse struct{}

func (m *ListRequest) marshal() []byte {
	return appendString(nil, 1, m.Prefix)
}

func (m *ListRequest) unmarshal(data []byte) error {
	return fields(data, func(num protowire.Number, v []byte) {
		if num == 1 {
			m.Prefix = string(v)
		}
	})
}

func (m *ListResponse) marshal() []byte {
	var b []byte
	for _, k := range m.Keys {
		b = appendString(b, 1, k)
	}
	return b
}

func (m *ListResponse) unmarshal(data []byte) error {
	return fields(data, func(num protowire.Number, v []byte) {
		if num == 1 {
			m.Keys = append(m.Keys, string(v))
		}
	})
}

func (m *ReadRequest) marshal() []byte {
	return appendString(nil, 1, m.Key)
}

func (m *ReadRequest) unmarshal(data []byte) error {
	return fields(data, func(num protowire.Number, v []byte) {
		if num == 1 {
			m.Key = string(v)
		}
	})
}

func (m *ReadResponse) marshal() []byte {
	return appendBytes(nil, 1, m.Data)
}

func (m *ReadResponse) unmarshal(data []byte) error {
	return fields(data, func(num protowire.Number, v []byte) {
		if num == 1 {
			m.Data = append([]byte(nil), v...)
		}
	})
}

func (m *WriteRequest) marshal() []byte {
	b := appendString(nil, 1, m.Key)
	return appendBytes(b, 2, m.Data)
}

func (m *WriteRequest) unmarshal(data []byte) error {
	return fields(data, func(num protowire.Number, v []byte) {
		switch num {
		case 1:
			m.Key = string(v)
		case 2:
			m.Data = append([]byte(nil), v...)
		}
	})
}

func (m *WriteResponse) marshal() []byte { return nil }

func (m *WriteResponse) unmarshal([]byte) error { return nil }

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// fields calls fn for every length-delimited field and skips the rest.
func fields(data []byte, fn func(num protowire.Number, v []byte)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			fn(num, v)
			data = data[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return nil
}
