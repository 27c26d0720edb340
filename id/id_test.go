package id

import (
	"testing"

	"github.com/causality-labs/causality/testutil"
)

func TestGenerators(t *testing.T) {
	is := testutil.NewIs(t)

	for _, gen := range []ID{NUID, UUID, NanoID} {
		a := gen.New()
		b := gen.New()
		is.True(a != "")
		is.True(a != b)
	}
}
