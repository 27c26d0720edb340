package causality

import (
	"errors"
	"sync"
)

var (
	ErrActorNotImplemented    = errors.New("causality: actor not implemented")
	ErrReplayerNotImplemented = errors.New("causality: replayer not implemented")
)

// Model wraps a value implementing Actor and/or Replayer and provides the
// mutual exclusion the contracts themselves do not: Handle takes a read
// lock, Apply and Replay take the write lock, so no two Apply calls for the
// same model overlap. It also tracks the store sequence of the last record
// replayed, which the dispatcher uses for optimistic concurrency.
//
// A Model satisfies Actor, Replayer, and the dispatcher's sequence tracking,
// so it can be passed to Dispatch directly in place of the bare actor.
type Model[C, E, T any] struct {
	t T

	a  Actor[C, E]
	rp Replayer

	// sseq is the start sequence of the model
	sseq uint64
	// lseq is the last sequence of the model
	lseq uint64

	mu sync.RWMutex
}

func (m *Model[C, E, T]) LastSequence() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lseq
}

// Replay folds a stored record into the model. Records at or below the last
// applied sequence are skipped, so replaying overlapping ranges is safe.
func (m *Model[C, E, T]) Replay(record *Record) error {
	if m.rp == nil {
		return ErrReplayerNotImplemented
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Already applied
	if m.lseq >= record.sequence {
		return nil
	}

	if err := m.rp.Replay(record); err != nil {
		return err
	}

	if m.sseq == 0 {
		m.sseq = record.sequence
	}
	m.lseq = record.sequence

	return nil
}

// advanceSequence records the store sequence of an append made on behalf of
// the model, so later dispatches expect the right sequence.
func (m *Model[C, E, T]) advanceSequence(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq > m.lseq {
		if m.sseq == 0 {
			m.sseq = seq
		}
		m.lseq = seq
	}
}

func (m *Model[C, E, T]) Handle(cause C) ([]E, error) {
	if m.a == nil {
		return nil, ErrActorNotImplemented
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.a.Handle(cause)
}

func (m *Model[C, E, T]) Apply(effects []E) error {
	if m.a == nil {
		return ErrActorNotImplemented
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.Apply(effects)
}

func (m *Model[C, E, T]) View(fn func(T) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.t)
}

func NewModel[C, E, T any](t T) *Model[C, E, T] {
	m := &Model[C, E, T]{}
	m.t = t

	// Type may implement neither, one, or both interfaces.
	// Missing implementations will be caught at runtime when methods are called.
	m.a, _ = any(t).(Actor[C, E])
	m.rp, _ = any(t).(Replayer)

	return m
}
