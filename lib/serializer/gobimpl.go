package serializer

import (
	"bytes"
	"encoding/gob"
)

// NewGOBSerializer creates a new binary serializer using Go's gob format
func NewGOBSerializer() BinarySerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the BinarySerializer interface using gob encoding
type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.BinarySerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Name() string {
	return "gob"
}

func (g gobSerializerImpl) SerializeBinary(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) DeserializeBinary(b []byte, v any) error {
	dec := gob.NewDecoder(bytes.NewReader(b))
	return dec.Decode(v)
}
