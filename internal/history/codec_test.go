package history

import (
	"errors"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"versync/internal/version"
)

func TestEncodeDecode(t *testing.T) {
	base := version.MustParseHeader("C/(C3)/T=3")
	f := File{
		Machine: "A",
		Base:    &base,
		Headers: version.MustParseBranch("C/(C4)/T=5", "A/(A1,C4)/T=1700000000000"),
	}

	data := Encode(f)
	assert.Equal(t, Magic, string(data[:len(Magic)]))

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Machine)
	require.NotNil(t, got.Base)
	assert.Equal(t, "C/(C3)/T=3", got.Base.String())
	assert.Equal(t, f.Headers.Strings(), got.Headers.Strings())
}

func TestDecode_NoBase(t *testing.T) {
	got, err := Decode(Encode(File{Machine: "B"}))
	require.NoError(t, err)
	assert.Nil(t, got.Base)
	assert.Empty(t, got.Headers)
}

func TestDecode_BadMagic(t *testing.T) {
	_, err := Decode([]byte("nope"))
	assert.True(t, errors.Is(err, ErrBadMagic))
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not snappy", append([]byte(Magic), 0xff, 0xff, 0xff)},
		{"truncated message", append([]byte(Magic), snappy.Encode(nil, []byte{0x0a, 0x05, 'A'})...)},
		{"missing machine", append([]byte(Magic), snappy.Encode(nil, nil)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
		})
	}
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	var header []byte
	header = protowire.AppendTag(header, headerOwner, protowire.BytesType)
	header = protowire.AppendString(header, "A")
	header = protowire.AppendTag(header, 9, protowire.Fixed64Type)
	header = protowire.AppendFixed64(header, 42)
	header = protowire.AppendTag(header, headerTimestamp, protowire.VarintType)
	header = protowire.AppendVarint(header, 7)

	var msg []byte
	msg = protowire.AppendTag(msg, fileMachine, protowire.BytesType)
	msg = protowire.AppendString(msg, "A")
	msg = protowire.AppendTag(msg, 15, protowire.BytesType)
	msg = protowire.AppendString(msg, "future field")
	msg = protowire.AppendTag(msg, fileHeaders, protowire.BytesType)
	msg = protowire.AppendBytes(msg, header)

	got, err := Decode(append([]byte(Magic), snappy.Encode(nil, msg)...))
	require.NoError(t, err)
	require.Len(t, got.Headers, 1)
	assert.Equal(t, "A/()/T=7", got.Headers[0].String())
}
