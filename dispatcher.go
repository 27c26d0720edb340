package causality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrEntityFuncRequired = errors.New("causality: entity func required")
	ErrPackNotSupported   = errors.New("causality: effect cannot be packed, provide a pack func")
	ErrTooManyConflicts   = errors.New("causality: too many sequence conflicts")
)

// PackFunc converts an application effect into a record for storage.
type PackFunc[E any] func(effect E) (*Record, error)

// stringEffect is the effect contract specialized to strings, which the
// default pack func relies on.
type stringEffect interface {
	Version() string
	Key() string
}

// sequenced is implemented by actors (or wrappers such as Model) that track
// the store sequence of the last record applied to them. When present, the
// dispatcher appends with an expected sequence for optimistic concurrency.
type sequenced interface {
	LastSequence() uint64
}

type dispatcherOpts struct {
	pack        any
	maxAttempts int
	logger      *slog.Logger
}

type dispatcherOptFn func(o *dispatcherOpts) error

func (f dispatcherOptFn) dispatcherOpt(o *dispatcherOpts) error {
	return f(o)
}

// DispatcherOption is an option when creating a Dispatcher.
type DispatcherOption interface {
	dispatcherOpt(o *dispatcherOpts) error
}

// WithPack sets an explicit pack func. The default requires effects to
// expose string Version and Key accessors.
func WithPack[E any](pack PackFunc[E]) DispatcherOption {
	return dispatcherOptFn(func(o *dispatcherOpts) error {
		o.pack = pack
		return nil
	})
}

// WithMaxAttempts bounds how many times a dispatch is retried after a
// sequence conflict. Default is 3.
func WithMaxAttempts(n int) DispatcherOption {
	return dispatcherOptFn(func(o *dispatcherOpts) error {
		if n < 1 {
			return fmt.Errorf("max attempts must be at least 1")
		}
		o.maxAttempts = n
		return nil
	})
}

// WithDispatchLogger sets the logger used by the dispatcher.
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return dispatcherOptFn(func(o *dispatcherOpts) error {
		o.logger = logger
		return nil
	})
}

// Dispatcher wires the contract cycle to a store: it has an actor handle a
// cause, appends the resulting effects as records, and then applies the
// effects onto the actor. Between handle and apply the effects are durable,
// so a crash after append loses no history.
//
// Appends use the actor's last known sequence, when it exposes one, as the
// expected sequence. On a conflict the actor is refreshed by replaying the
// records it has not seen and the cause is handled again, up to the
// configured number of attempts.
type Dispatcher[C, E any] struct {
	store      RecordStore
	entityFunc func(cause C) string
	pack       PackFunc[E]
	attempts   int
	logger     *slog.Logger
}

// NewDispatcher initializes a dispatcher for a cause and effect type pair.
// The entity func derives the actor identity, in "type.id" form, from a
// cause. It is what ties records in the store back to the actor they
// belong to.
func NewDispatcher[C, E any](store RecordStore, entityFunc func(cause C) string, opts ...DispatcherOption) (*Dispatcher[C, E], error) {
	if entityFunc == nil {
		return nil, ErrEntityFuncRequired
	}

	o := dispatcherOpts{
		maxAttempts: 3,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt.dispatcherOpt(&o); err != nil {
			return nil, err
		}
	}

	d := &Dispatcher[C, E]{
		store:      store,
		entityFunc: entityFunc,
		attempts:   o.maxAttempts,
		logger:     o.logger,
	}

	if o.pack != nil {
		pack, ok := o.pack.(PackFunc[E])
		if !ok {
			return nil, fmt.Errorf("pack func has wrong effect type: %T", o.pack)
		}
		d.pack = pack
	} else {
		d.pack = defaultPack[E]
	}

	return d, nil
}

// defaultPack wraps an effect that exposes string Version and Key accessors.
// The key becomes the record ID so the store deduplicates by it. An optional
// Type accessor names the record type; otherwise the type registry, when
// configured, fills it in on append.
func defaultPack[E any](effect E) (*Record, error) {
	se, ok := any(effect).(stringEffect)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrPackNotSupported, effect)
	}
	record := &Record{
		ID:            se.Key(),
		SchemaVersion: se.Version(),
		Data:          effect,
	}
	if te, ok := any(effect).(interface{ Type() string }); ok {
		record.Type = te.Type()
	}
	return record, nil
}

// Dispatch runs one contract cycle for the cause against the actor. The
// returned sequence is that of the last appended record, or zero when the
// actor produced no effects. Apply is invoked only after a successful
// append, with exactly the effects Handle returned, in order.
func (d *Dispatcher[C, E]) Dispatch(ctx context.Context, actor Actor[C, E], cause C) (uint64, error) {
	entity := d.entityFunc(cause)

	for attempt := 1; ; attempt++ {
		effects, err := actor.Handle(cause)
		if err != nil {
			return 0, err
		}

		// Nothing happened, nothing to store or apply.
		if len(effects) == 0 {
			return 0, nil
		}

		records := make([]*Record, len(effects))
		for i, effect := range effects {
			record, err := d.pack(effect)
			if err != nil {
				return 0, err
			}
			if record.Entity == "" {
				record.Entity = entity
			}
			records[i] = record
		}

		var aopts []AppendOption
		sq, tracked := actor.(sequenced)
		if tracked {
			aopts = append(aopts, ExpectSequence(sq.LastSequence()))
		}

		seq, err := d.store.Append(ctx, records, aopts...)
		if err == nil {
			// The store advanced whether or not the local apply succeeds.
			if adv, ok := actor.(interface{ advanceSequence(seq uint64) }); ok {
				adv.advanceSequence(seq)
			}
			return seq, actor.Apply(effects)
		}

		if !errors.Is(err, ErrSequenceConflict) {
			return 0, err
		}

		if attempt >= d.attempts {
			return 0, fmt.Errorf("%w: %s after %d attempts", ErrTooManyConflicts, entity, attempt)
		}

		// Refresh the actor with the records it has not seen and try again.
		rp, ok := actor.(Replayer)
		if !ok {
			return 0, err
		}

		ropts := []ReplayOption{Filters(entity)}
		if tracked {
			ropts = append(ropts, AfterSequence(sq.LastSequence()))
		}
		if _, err := d.store.Replay(ctx, rp, ropts...); err != nil {
			return 0, err
		}

		d.logger.Debug("dispatch conflict, retrying",
			slog.String("entity", entity),
			slog.Int("attempt", attempt),
		)
	}
}
