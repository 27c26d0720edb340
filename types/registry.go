// Package types provides a registry mapping effect type names to Go types
// so values can be transparently marshaled, unmarshaled, and validated.
package types

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/causality-labs/causality/codec"
)

var (
	ErrTypeNotValid      = errors.New("causality: type not valid")
	ErrTypeNotRegistered = errors.New("causality: type not registered")
	ErrNoTypeForStruct   = errors.New("causality: no type for struct")
	ErrSchemaViolation   = errors.New("causality: schema violation")

	nameRegex = regexp.MustCompile(`^[\w-]+(\.[\w-]+)*$`)
)

// Type describes a registered type. Init must return a new pointer to a
// struct value. Schema optionally holds a raw JSON Schema document the
// value is validated against on marshal and unmarshal when the JSON codec
// is in use.
type Type struct {
	Init        func() any
	Description string
	Schema      []byte
}

// Registry is used for transparently marshaling and unmarshaling values
// from their native types to their network/storage representation.
type Registry interface {
	Codec() codec.Codec
	Init(t string) (any, error)
	Lookup(v any) (string, error)
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
	UnmarshalType(b []byte, t string) (any, error)
}

func validateTypeName(n string) error {
	if !nameRegex.MatchString(n) {
		return fmt.Errorf("%w: name %q has invalid characters", ErrTypeNotValid, n)
	}
	return nil
}
