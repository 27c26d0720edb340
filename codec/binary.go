package codec

import "fmt"

var (
	Binary Codec = &binaryCodec{}
)

// binaryCodec passes pre-encoded byte slices through untouched. It is the
// codec used when no type registry is configured.
type binaryCodec struct{}

func (*binaryCodec) Name() string {
	return "binary"
}

func (*binaryCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("binary: expected []byte, got %T", v)
	}
	return b, nil
}

func (*binaryCodec) Unmarshal(b []byte, v any) error {
	p, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("binary: expected *[]byte, got %T", v)
	}
	*p = b
	return nil
}
