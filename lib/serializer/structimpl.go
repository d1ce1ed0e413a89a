package serializer

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// NewStructSerializer creates a binary serializer for fixed-size values (numbers, bools,
// arrays and structs made only of those). The layout is the little endian memory layout
// produced by encoding/binary, without padding. Values that are not fixed-size fail.
func NewStructSerializer() BinarySerializer {
	return &structSerializerImpl{}
}

// structSerializerImpl implements the BinarySerializer interface using encoding/binary
type structSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.BinarySerializer)
// --------------------------------------------------------------------------

func (s structSerializerImpl) Name() string {
	return "struct"
}

func (s structSerializerImpl) SerializeBinary(v any) ([]byte, error) {
	size := binary.Size(v)
	if size < 0 {
		return nil, fmt.Errorf("struct serializer: %T is not a fixed-size value", v)
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s structSerializerImpl) DeserializeBinary(b []byte, v any) error {
	size := binary.Size(v)
	if size < 0 {
		return fmt.Errorf("struct serializer: %T is not a fixed-size value", v)
	}
	if len(b) < size {
		return fmt.Errorf("struct serializer: need %d bytes for %T, got %d", size, v, len(b))
	}
	return binary.Read(bytes.NewReader(b[:size]), binary.LittleEndian, v)
}
