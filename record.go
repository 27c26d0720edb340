package causality

import (
	"errors"
	"regexp"
	"time"
)

var (
	ErrRecordDataRequired   = errors.New("causality: record data required")
	ErrRecordEntityRequired = errors.New("causality: record entity required")
	ErrRecordEntityInvalid  = errors.New("causality: record entity invalid")
	ErrRecordTypeRequired   = errors.New("causality: record type required")
	ErrSequenceConflict     = errors.New("causality: sequence conflict")
)

// validator can be optionally implemented by user-defined types and will be
// validated in different contexts, such as before appending a record to a store.
type validator interface {
	Validate() error
}

// Record is the persisted form of an effect. Application effects are wrapped
// into records before being appended to a store and unwrapped again on replay.
type Record struct {
	// ID of the record. This is the effect's idempotency key and is used
	// as the NATS msg ID for de-duplication.
	ID string

	// Entity identifies the actor this record belongs to. The format must
	// be two tokens, e.g. "order.1234".
	Entity string

	// SchemaVersion is the schema version of the effect payload, used by
	// consumers to decide how to interpret the data as the shape evolves.
	SchemaVersion string

	// Time is the time of when the effect occurred which may be different
	// from the time the record is appended to the store. If no time is
	// provided, the current local time will be used.
	Time time.Time

	// Type is a unique name for the effect itself. This can be omitted
	// if a type registry is being used, otherwise it must be set explicitly
	// to identify the encoded data.
	Type string

	// Data is the effect data. This must be a byte slice (pre-encoded) or a
	// value of a type registered in the type registry.
	Data any

	// Meta is application-defined metadata about the record.
	Meta map[string]string

	// subject is the subject the record is associated with. Read-only.
	subject string

	// sequence is the sequence where this record exists in the store. Read-only.
	sequence uint64
}

// Sequence returns the store sequence of the record. It is zero until the
// record has been appended or unpacked from a store.
func (r *Record) Sequence() uint64 {
	return r.sequence
}

// Subject returns the subject the record was stored under, if any.
func (r *Record) Subject() string {
	return r.subject
}

var entityRegex = regexp.MustCompile(`^[^.]+\.[^.]+$`)

// Replayer is implemented by application-defined state that can be rebuilt
// by folding persisted records back in, one at a time and in order. This is
// how an actor is reconstructed from its history.
type Replayer interface {
	Replay(record *Record) error
}
