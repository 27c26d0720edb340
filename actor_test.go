package causality

import (
	"errors"
	"testing"

	"github.com/causality-labs/causality/testutil"
)

type testCommand struct {
	actorID      string
	actorVersion string
}

func (c testCommand) ActorID() string      { return c.actorID }
func (c testCommand) ActorVersion() string { return c.actorVersion }

type testEvent struct {
	version string
	key     string
}

func (e testEvent) Version() string { return e.version }
func (e testEvent) Key() string     { return e.key }

// testAggregate special-cases actor id "one" and requires exactly one
// effect on apply.
type testAggregate struct {
	id      string
	version string
	applied []testEvent
}

func (a *testAggregate) Handle(cmd testCommand) ([]testEvent, error) {
	if cmd.ActorID() != "one" {
		return nil, errors.New("should have actor id one")
	}
	return []testEvent{
		{version: "1.0.0", key: "alpha-1234"},
	}, nil
}

func (a *testAggregate) Apply(events []testEvent) error {
	if len(events) != 1 {
		return errors.New("should have single effect")
	}
	a.applied = append(a.applied, events...)
	a.version = events[0].Key()
	return nil
}

var (
	_ Cause[string, string]         = testCommand{}
	_ Effect[string, string]        = testEvent{}
	_ Actor[testCommand, testEvent] = (*testAggregate)(nil)
)

func TestActorHandleReturnsEffect(t *testing.T) {
	is := testutil.NewIs(t)

	agg := &testAggregate{id: "alpha", version: "one"}
	cmd := testCommand{actorID: "one", actorVersion: "two"}

	events, err := agg.Handle(cmd)
	is.NoErr(err)
	is.Equal(len(events), 1)
	is.Equal(events[0].Version(), "1.0.0")
	is.Equal(events[0].Key(), "alpha-1234")

	// Handle must not mutate the actor.
	is.Equal(agg.id, "alpha")
	is.Equal(agg.version, "one")
	is.Equal(len(agg.applied), 0)
}

func TestActorHandleWrongActor(t *testing.T) {
	is := testutil.NewIs(t)

	agg := &testAggregate{id: "alpha", version: "one"}
	cmd := testCommand{actorID: "two", actorVersion: "two"}

	_, err := agg.Handle(cmd)
	is.Err(err, nil)

	is.Equal(agg.version, "one")
	is.Equal(len(agg.applied), 0)
}

func TestActorApplySingleEffect(t *testing.T) {
	is := testutil.NewIs(t)

	agg := &testAggregate{id: "alpha", version: "one"}
	err := agg.Apply([]testEvent{
		{version: "1.0.0", key: "alpha-1234"},
	})
	is.NoErr(err)
	is.Equal(agg.version, "alpha-1234")
	is.Equal(len(agg.applied), 1)
}

func TestActorApplyNoEffects(t *testing.T) {
	is := testutil.NewIs(t)

	agg := &testAggregate{id: "alpha", version: "one"}
	err := agg.Apply(nil)
	is.Err(err, nil)

	// A failed apply leaves no partial state change.
	is.Equal(agg.version, "one")
	is.Equal(len(agg.applied), 0)
}

func TestCauseAccessors(t *testing.T) {
	is := testutil.NewIs(t)

	cmd := testCommand{actorID: "one", actorVersion: "two"}
	is.Equal(cmd.ActorID(), "one")
	is.Equal(cmd.ActorVersion(), "two")

	// Accessors are pure, repeated calls agree.
	is.Equal(cmd.ActorID(), cmd.ActorID())
	is.Equal(cmd.ActorVersion(), cmd.ActorVersion())
}
