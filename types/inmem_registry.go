package types

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/causality-labs/causality/codec"
)

type registryOption func(o *registry) error

func (f registryOption) addOption(o *registry) error {
	return f(o)
}

// Option models an option when creating a type registry.
type Option interface {
	addOption(o *registry) error
}

// WithCodec sets the codec used by the registry. Default is codec.Default.
func WithCodec(c codec.Codec) Option {
	return registryOption(func(o *registry) error {
		o.codec = c
		return nil
	})
}

// registry is the in-memory Registry implementation.
type registry struct {
	// Codec for marshaling and unmarshaling values.
	codec codec.Codec

	// Index of types.
	types map[string]*Type

	// Reflection type to the type name.
	rtypes map[reflect.Type]string

	// Compiled schemas for validation.
	schemas map[string]*jsonschema.Schema
}

func (r *registry) Codec() codec.Codec {
	return r.codec
}

func (r *registry) validate(name string, typ *Type) error {
	if name == "" {
		return fmt.Errorf("%w: missing name", ErrTypeNotValid)
	}

	if err := validateTypeName(name); err != nil {
		return err
	}

	if typ.Init == nil {
		return fmt.Errorf("%w: %s: missing init func", ErrTypeNotValid, name)
	}
	// Ensure the initialized value is not nil.
	v := typ.Init()
	if v == nil {
		return fmt.Errorf("%w: %s: init func returns nil", ErrTypeNotValid, name)
	}

	// Get the Go type in order to transparently serialize to the correct name.
	rt := reflect.TypeOf(v)

	// Ensure the initialized type is a pointer so that deserialization works.
	if rt.Kind() != reflect.Ptr {
		return fmt.Errorf("%w: %s: init func must return a pointer value", ErrTypeNotValid, name)
	}

	// Ensure that the pointer value is a struct type.
	if rt.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s: value type must be a struct", ErrTypeNotValid, name)
	}

	// Ensure [de]serialization works in the base case.
	b, err := r.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to marshal with codec: %s", ErrTypeNotValid, name, err)
	}

	err = r.codec.Unmarshal(b, v)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to unmarshal with codec: %s", ErrTypeNotValid, name, err)
	}

	return nil
}

func (r *registry) addType(name string, typ *Type) error {
	r.types[name] = typ

	// Initialize a value, reflect the type to index.
	v := typ.Init()
	rt := reflect.TypeOf(v)

	r.rtypes[rt] = name
	r.rtypes[rt.Elem()] = name

	if typ.Schema != nil {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(typ.Schema))
		if err != nil {
			return fmt.Errorf("%w: %s: failed to parse schema: %s", ErrTypeNotValid, name, err)
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(name, doc); err != nil {
			return fmt.Errorf("%w: %s: failed to add schema resource: %s", ErrTypeNotValid, name, err)
		}
		schema, err := c.Compile(name)
		if err != nil {
			return fmt.Errorf("%w: %s: failed to compile schema: %s", ErrTypeNotValid, name, err)
		}
		r.schemas[name] = schema
	}

	return nil
}

// checkSchema validates the encoded value against the registered schema, if
// any. Validation only applies under the JSON codec since the schema
// document describes the JSON shape.
func (r *registry) checkSchema(name string, data []byte) error {
	schema, ok := r.schemas[name]
	if !ok {
		return nil
	}
	if r.codec != codec.JSON {
		return nil
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrSchemaViolation, name, err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrSchemaViolation, name, err)
	}
	return nil
}

// Init a value given the registered name of the type.
func (r *registry) Init(t string) (any, error) {
	x, ok := r.types[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotRegistered, t)
	}

	return x.Init(), nil
}

// Lookup returns the registered name of the type given a value.
func (r *registry) Lookup(v any) (string, error) {
	rt := reflect.TypeOf(v)
	t, ok := r.rtypes[rt]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoTypeForStruct, rt)
	}

	return t, nil
}

// Marshal serializes the value to a byte slice. This call validates the
// type is registered, delegates to the codec, and checks the schema when
// one is registered.
func (r *registry) Marshal(v any) ([]byte, error) {
	t, err := r.Lookup(v)
	if err != nil {
		return nil, err
	}

	b, err := r.codec.Marshal(v)
	if err != nil {
		return b, fmt.Errorf("%T: marshal error: %w", v, err)
	}

	if err := r.checkSchema(t, b); err != nil {
		return nil, err
	}

	return b, nil
}

// Unmarshal deserializes a byte slice into the value. This call validates
// the type is registered, checks the schema when one is registered, and
// delegates to the codec.
func (r *registry) Unmarshal(b []byte, v any) error {
	t, err := r.Lookup(v)
	if err != nil {
		return err
	}

	if err := r.checkSchema(t, b); err != nil {
		return err
	}

	err = r.codec.Unmarshal(b, v)
	if err != nil {
		return fmt.Errorf("%T: unmarshal error: %w", v, err)
	}
	return nil
}

// UnmarshalType initializes a new value for the registered type,
// unmarshals the byte slice, and returns it.
func (r *registry) UnmarshalType(b []byte, t string) (any, error) {
	v, err := r.Init(t)
	if err != nil {
		return nil, err
	}
	err = r.Unmarshal(b, v)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// NewRegistry initializes a registry from a map of type names to type
// descriptors.
func NewRegistry(types map[string]*Type, opts ...Option) (Registry, error) {
	r := &registry{
		codec:   codec.Default,
		types:   make(map[string]*Type),
		rtypes:  make(map[reflect.Type]string),
		schemas: make(map[string]*jsonschema.Schema),
	}

	for _, o := range opts {
		if err := o.addOption(r); err != nil {
			return nil, err
		}
	}

	for n, t := range types {
		if err := r.validate(n, t); err != nil {
			return nil, err
		}
		if err := r.addType(n, t); err != nil {
			return nil, err
		}
	}

	return r, nil
}
