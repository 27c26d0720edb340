package codec

import (
	"testing"

	"github.com/causality-labs/causality/testutil"
)

func TestBinaryCodec(t *testing.T) {
	is := testutil.NewIs(t)

	b, err := Binary.Marshal([]byte("hello"))
	is.NoErr(err)
	is.Equal(b, []byte("hello"))

	var out []byte
	err = Binary.Unmarshal(b, &out)
	is.NoErr(err)
	is.Equal(out, []byte("hello"))
}

func TestBinaryCodec_WrongType(t *testing.T) {
	is := testutil.NewIs(t)

	_, err := Binary.Marshal("not bytes")
	is.Err(err, nil)

	var out string
	err = Binary.Unmarshal([]byte("x"), &out)
	is.Err(err, nil)
}

func TestBinaryCodec_Name(t *testing.T) {
	is := testutil.NewIs(t)
	is.Equal(Binary.Name(), "binary")
}
