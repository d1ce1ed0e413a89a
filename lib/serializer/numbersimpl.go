package serializer

import (
	"strconv"
	"strings"
)

// NewFloatsSerializer creates a text serializer specialized for []float64. Values are written
// comma separated ("1.5,2,-3") which keeps vectors and colors readable in the store.
func NewFloatsSerializer() TypedTextSerializer[[]float64] {
	return &floatsSerializerImpl{}
}

// NewIntsSerializer creates a text serializer specialized for []int64, comma separated.
func NewIntsSerializer() TypedTextSerializer[[]int64] {
	return &intsSerializerImpl{}
}

// RegisterNumberLists binds the number list serializers to []float64 and []int64 in r.
func RegisterNumberLists(r *Registry) error {
	if err := Register[[]float64](r, NewFloatsSerializer()); err != nil {
		return err
	}
	return Register[[]int64](r, NewIntsSerializer())
}

type floatsSerializerImpl struct {
}

func (f floatsSerializerImpl) Name() string {
	return "floats"
}

func (f floatsSerializerImpl) EncodeText(v []float64) (string, error) {
	return joinNumbers(v, func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }), nil
}

func (f floatsSerializerImpl) DecodeText(text string) ([]float64, error) {
	return splitNumbers(text, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

type intsSerializerImpl struct {
}

func (i intsSerializerImpl) Name() string {
	return "ints"
}

func (i intsSerializerImpl) EncodeText(v []int64) (string, error) {
	return joinNumbers(v, func(x int64) string { return strconv.FormatInt(x, 10) }), nil
}

func (i intsSerializerImpl) DecodeText(text string) ([]int64, error) {
	return splitNumbers(text, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func joinNumbers[N any](v []N, format func(N) string) string {
	var sb strings.Builder
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(format(x))
	}
	return sb.String()
}

// splitNumbers parses a comma separated list. Empty segments are skipped, so "" is an empty list.
func splitNumbers[N any](text string, parse func(string) (N, error)) ([]N, error) {
	result := make([]N, 0, strings.Count(text, ",")+1)
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		x, err := parse(part)
		if err != nil {
			return nil, err
		}
		result = append(result, x)
	}
	return result, nil
}
