// Package causality provides a small set of contracts for event-driven
// domain logic: an Actor handles a Cause and produces zero or more Effects,
// which are then applied back onto the actor to advance its state. The
// package also ships the collaborators a real application needs around the
// contracts: an effect store over NATS JetStream, an in-memory store, a
// dispatcher, and a thread-safe model wrapper.
package causality

// Cause is an instruction targeting exactly one actor. ID identifies the
// target actor and V is the version the caller believes the actor is
// currently at, used for staleness and optimistic concurrency checks.
//
// Both accessors must be pure: deterministic and free of side effects.
type Cause[ID, V any] interface {
	// ActorID returns the identifier of the actor this cause targets.
	ActorID() ID

	// ActorVersion returns the version the cause expects the actor to be at.
	// Whether a mismatch is an error is decided by the actor or dispatcher,
	// not at this layer.
	ActorVersion() V
}

// Effect is an outcome of handling a cause. V is a schema version tag for
// backward-compatible evolution of the effect's shape. K is the idempotency
// key: two effects with equal keys represent the same logical occurrence,
// and a consuming system must treat the second as a duplicate rather than
// double-applying it.
//
// Both accessors must be pure.
type Effect[V, K any] interface {
	// Version returns the schema version of the effect.
	Version() V

	// Key returns the idempotency key of the effect.
	Key() K
}

// Actor is a stateful entity that handles causes and applies effects. C is
// the cause type and E the effect type; implementations choose their own
// concrete identifier and version representations.
//
// Handle must not mutate the actor. State changes happen only through Apply,
// so a caller is free to persist or publish the returned effects before
// folding them in. If a concrete actor is invoked concurrently, the caller
// must supply mutual exclusion; see Model.
type Actor[C, E any] interface {
	// Handle decides what happened given the current state and an incoming
	// cause, returning the ordered effects that resulted. Implementations
	// are expected to validate that the cause targets this actor and, when
	// optimistic concurrency is desired, that the cause's actor version
	// matches the actor's own. Mismatches are errors, never silently
	// ignored.
	Handle(cause C) ([]E, error)

	// Apply folds an ordered sequence of effects into actor state,
	// advancing the actor's version. Apply must be atomic: if the sequence
	// is structurally invalid for the current state (wrong cardinality,
	// unexpected key), it fails without partial mutation.
	Apply(effects []E) error
}
