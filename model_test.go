package causality

import (
	"testing"

	"github.com/causality-labs/causality/testutil"
)

func TestModelReplaySkipsApplied(t *testing.T) {
	is := testutil.NewIs(t)

	m := newOrderModel("1")

	placed := &Record{
		ID:       "1-placed",
		Entity:   "order.1",
		Type:     "order-placed",
		Data:     &orderEvent{Kind: "order-placed", K: "1-placed"},
		sequence: 1,
	}

	err := m.Replay(placed)
	is.NoErr(err)
	is.Equal(m.LastSequence(), uint64(1))

	// Replaying the same sequence again is a no-op.
	err = m.Replay(placed)
	is.NoErr(err)
	is.Equal(m.LastSequence(), uint64(1))
}

func TestModelNotImplemented(t *testing.T) {
	is := testutil.NewIs(t)

	type plain struct{}
	m := NewModel[orderCommand, *orderEvent](&plain{})

	_, err := m.Handle(orderCommand{id: "1", action: "place"})
	is.Err(err, ErrActorNotImplemented)

	err = m.Apply(nil)
	is.Err(err, ErrActorNotImplemented)

	err = m.Replay(&Record{sequence: 1})
	is.Err(err, ErrReplayerNotImplemented)
}

func TestModelView(t *testing.T) {
	is := testutil.NewIs(t)

	m := newOrderModel("1")

	err := m.Apply([]*orderEvent{{Kind: "order-placed", K: "1-placed"}})
	is.NoErr(err)

	err = m.View(func(o *order) error {
		is.True(o.placed)
		is.True(!o.shipped)
		return nil
	})
	is.NoErr(err)
}

func BenchmarkModel_Handle(b *testing.B) {
	m := newOrderModel("1")
	cmd := orderCommand{id: "1", action: "touch"}

	b.ResetTimer()

	for b.Loop() {
		_, _ = m.Handle(cmd)
	}
}

func BenchmarkModel_Replay(b *testing.B) {
	m := newOrderModel("1")
	r := &Record{}

	b.ResetTimer()

	for b.Loop() {
		_ = m.Replay(r)
	}
}

func BenchmarkModel_View(b *testing.B) {
	m := newOrderModel("1")
	fn := func(o *order) error { return nil }

	b.ResetTimer()

	for b.Loop() {
		_ = m.View(fn)
	}
}
