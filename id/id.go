// Package id provides pluggable unique ID generation for record IDs.
package id

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nats-io/nuid"
)

var (
	// NUID generates NATS-style NUIDs. This is the default generator.
	NUID ID = &nuidGen{}

	// UUID generates random (v4) UUIDs.
	UUID ID = &uuidGen{}

	// NanoID generates nanoids.
	NanoID ID = &nanoidGen{}
)

// ID generates unique string identifiers.
type ID interface {
	New() string
}

type nuidGen struct{}

func (*nuidGen) New() string {
	return nuid.Next()
}

type uuidGen struct{}

func (*uuidGen) New() string {
	return uuid.NewString()
}

type nanoidGen struct{}

func (*nanoidGen) New() string {
	return gonanoid.Must()
}
