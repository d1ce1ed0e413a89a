package serializer

import (
	"encoding/json"
)

// NewJSONSerializer creates a new text serializer using json encoding
func NewJSONSerializer() TextSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the TextSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.TextSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Name() string {
	return "json"
}

func (j jsonSerializerImpl) SerializeText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (j jsonSerializerImpl) DeserializeText(text string, v any) error {
	return json.Unmarshal([]byte(text), v)
}
