package serializer

import (
	"github.com/vmihailenco/msgpack/v5"
)

// NewMsgpackSerializer creates a new binary serializer using msgpack encoding.
// Struct fields can be renamed with `msgpack:"name"` tags.
func NewMsgpackSerializer() BinarySerializer {
	return &msgpackSerializerImpl{}
}

// msgpackSerializerImpl implements the BinarySerializer interface using msgpack encoding
type msgpackSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.BinarySerializer)
// --------------------------------------------------------------------------

func (m msgpackSerializerImpl) Name() string {
	return "msgpack"
}

func (m msgpackSerializerImpl) SerializeBinary(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (m msgpackSerializerImpl) DeserializeBinary(b []byte, v any) error {
	return msgpack.Unmarshal(b, v)
}
