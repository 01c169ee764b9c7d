package peer

import (
	"fmt"
)

// codecName is reported to gRPC as the content subtype.
const codecName = "versync"

// wireCodec marshals the service messages with the protobuf wire format.
type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("peer codec: unsupported type %T", v)
	}
	return m.marshal(), nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("peer codec: unsupported type %T", v)
	}
	return m.unmarshal(data)
}

func (wireCodec) Name() string {
	return codecName
}
