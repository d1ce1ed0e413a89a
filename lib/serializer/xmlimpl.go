package serializer

import (
	"encoding/xml"
)

// NewXMLSerializer creates a new text serializer using xml encoding. Maps are not supported by
// encoding/xml, use it for structs, slices and scalars.
func NewXMLSerializer() TextSerializer {
	return &xmlSerializerImpl{}
}

// xmlSerializerImpl implements the TextSerializer interface using xml encoding
type xmlSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.TextSerializer)
// --------------------------------------------------------------------------

func (x xmlSerializerImpl) Name() string {
	return "xml"
}

func (x xmlSerializerImpl) SerializeText(v any) (string, error) {
	b, err := xml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (x xmlSerializerImpl) DeserializeText(text string, v any) error {
	return xml.Unmarshal([]byte(text), v)
}
