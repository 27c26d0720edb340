package types

import (
	"testing"

	"github.com/causality-labs/causality/codec"
	"github.com/causality-labs/causality/testutil"
)

type orderPlaced struct {
	OrderID string `json:"order_id"`
	Amount  int    `json:"amount"`
}

func TestRegistryRoundTrip(t *testing.T) {
	is := testutil.NewIs(t)

	r, err := NewRegistry(map[string]*Type{
		"order-placed": {
			Init: func() any { return &orderPlaced{} },
		},
	})
	is.NoErr(err)

	v := &orderPlaced{OrderID: "1", Amount: 10}

	name, err := r.Lookup(v)
	is.NoErr(err)
	is.Equal(name, "order-placed")

	b, err := r.Marshal(v)
	is.NoErr(err)

	out, err := r.UnmarshalType(b, "order-placed")
	is.NoErr(err)
	is.Equal(out, v)

	_, err = r.Init("order-shipped")
	is.Err(err, ErrTypeNotRegistered)

	_, err = r.Lookup(struct{}{})
	is.Err(err, ErrNoTypeForStruct)
}

func TestRegistryValidation(t *testing.T) {
	is := testutil.NewIs(t)

	_, err := NewRegistry(map[string]*Type{
		"": {Init: func() any { return &orderPlaced{} }},
	})
	is.Err(err, ErrTypeNotValid)

	_, err = NewRegistry(map[string]*Type{
		"bad name!": {Init: func() any { return &orderPlaced{} }},
	})
	is.Err(err, ErrTypeNotValid)

	_, err = NewRegistry(map[string]*Type{
		"order-placed": {},
	})
	is.Err(err, ErrTypeNotValid)

	// Init must return a pointer to a struct.
	_, err = NewRegistry(map[string]*Type{
		"order-placed": {Init: func() any { return orderPlaced{} }},
	})
	is.Err(err, ErrTypeNotValid)
}

func TestRegistryCodecOption(t *testing.T) {
	is := testutil.NewIs(t)

	r, err := NewRegistry(map[string]*Type{
		"order-placed": {
			Init: func() any { return &orderPlaced{} },
		},
	}, WithCodec(codec.MsgPack))
	is.NoErr(err)
	is.Equal(r.Codec().Name(), "msgpack")

	v := &orderPlaced{OrderID: "1", Amount: 10}
	b, err := r.Marshal(v)
	is.NoErr(err)

	var out orderPlaced
	err = r.Unmarshal(b, &out)
	is.NoErr(err)
	is.Equal(out, *v)
}

func TestRegistrySchemaValidation(t *testing.T) {
	is := testutil.NewIs(t)

	schema := []byte(`{
		"type": "object",
		"properties": {
			"order_id": {"type": "string", "minLength": 1},
			"amount": {"type": "integer", "minimum": 0}
		},
		"required": ["order_id"]
	}`)

	r, err := NewRegistry(map[string]*Type{
		"order-placed": {
			Init:   func() any { return &orderPlaced{} },
			Schema: schema,
		},
	})
	is.NoErr(err)

	_, err = r.Marshal(&orderPlaced{OrderID: "1", Amount: 10})
	is.NoErr(err)

	// Violates the minLength constraint.
	_, err = r.Marshal(&orderPlaced{OrderID: "", Amount: 10})
	is.Err(err, ErrSchemaViolation)

	// Unmarshal validates too.
	err = r.Unmarshal([]byte(`{"order_id": "1", "amount": -3}`), &orderPlaced{})
	is.Err(err, ErrSchemaViolation)
}

func TestRegistryInvalidSchema(t *testing.T) {
	is := testutil.NewIs(t)

	_, err := NewRegistry(map[string]*Type{
		"order-placed": {
			Init:   func() any { return &orderPlaced{} },
			Schema: []byte(`{`),
		},
	})
	is.Err(err, ErrTypeNotValid)
}
