package causality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/causality-labs/causality/clock"
	"github.com/causality-labs/causality/id"
	"github.com/causality-labs/causality/types"
)

const (
	effectStoreNameTmpl    = "ES_%s"
	effectStoreSubjectTmpl = "$ES.%s."
)

var ErrEffectStoreNameRequired = errors.New("causality: effect store name required")

type managerOption func(o *Manager) error

func (f managerOption) addOption(o *Manager) error {
	return f(o)
}

// ManagerOption models an option when creating a Manager.
type ManagerOption interface {
	addOption(o *Manager) error
}

// WithRegistry sets an explicit type registry.
func WithRegistry(types types.Registry) ManagerOption {
	return managerOption(func(o *Manager) error {
		o.ct.types = types
		return nil
	})
}

// WithClock sets a clock implementation. Default is clock.Time.
func WithClock(clock clock.Clock) ManagerOption {
	return managerOption(func(o *Manager) error {
		o.ct.clock = clock
		return nil
	})
}

// WithIDer sets a unique ID generator implementation. Default is id.NUID.
func WithIDer(id id.ID) ManagerOption {
	return managerOption(func(o *Manager) error {
		o.ct.id = id
		return nil
	})
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return managerOption(func(o *Manager) error {
		o.ct.logger = logger
		return nil
	})
}

// EffectStoreConfig is the subset of stream configuration a managed effect
// store exposes. Name is required; everything else has server defaults.
type EffectStoreConfig struct {
	Name        string
	Description string
	Metadata    map[string]string
	Replicas    int
	Storage     jetstream.StorageType
	Placement   *jetstream.Placement
	RePublish   *jetstream.RePublish
	MaxMsgs     int64
	MaxAge      time.Duration
	MaxBytes    int64

	// Duplicates is the window within which records with a previously seen
	// idempotency key are dropped by the server.
	Duplicates time.Duration
}

// Manager creates and manages EffectStore instances under a common naming
// scheme. It provides shared dependencies (type registry, ID generator,
// clock) to all stores it creates.
type Manager struct {
	ct *Causality
}

func (m *Manager) streamConfig(config EffectStoreConfig) *jetstream.StreamConfig {
	return &jetstream.StreamConfig{
		Name:        fmt.Sprintf(effectStoreNameTmpl, config.Name),
		Description: config.Description,
		Metadata:    config.Metadata,
		Subjects:    []string{fmt.Sprintf(effectStoreSubjectTmpl, config.Name) + ">"},
		Replicas:    config.Replicas,
		Storage:     config.Storage,
		Placement:   config.Placement,
		RePublish:   config.RePublish,
		MaxMsgs:     config.MaxMsgs,
		MaxAge:      config.MaxAge,
		MaxBytes:    config.MaxBytes,
		Duplicates:  config.Duplicates,
		AllowDirect: true,
	}
}

// bind returns a store handle bound to the managed stream name and subject
// prefix for the given store name.
func (m *Manager) bind(name string) *EffectStore {
	prefix := fmt.Sprintf(effectStoreSubjectTmpl, name)
	prefix = prefix[:len(prefix)-1]

	s := &EffectStore{
		name:          fmt.Sprintf(effectStoreNameTmpl, name),
		ct:            m.ct,
		subjectPrefix: prefix,
	}
	s.subjectFunc = func(record *Record) string {
		return fmt.Sprintf("%s.%s.%s", prefix, record.Entity, record.Type)
	}
	return s
}

// GetEffectStore returns a handle to an existing managed effect store.
func (m *Manager) GetEffectStore(ctx context.Context, name string) (*EffectStore, error) {
	if name == "" {
		return nil, ErrEffectStoreNameRequired
	}

	_, err := m.ct.js.Stream(ctx, fmt.Sprintf(effectStoreNameTmpl, name))
	if err != nil {
		return nil, err
	}

	return m.bind(name), nil
}

// CreateEffectStore creates the effect store given the configuration.
func (m *Manager) CreateEffectStore(ctx context.Context, config EffectStoreConfig) (*EffectStore, error) {
	if config.Name == "" {
		return nil, ErrEffectStoreNameRequired
	}

	_, err := m.ct.js.CreateStream(ctx, *m.streamConfig(config))
	if err != nil {
		return nil, err
	}

	return m.bind(config.Name), nil
}

// UpdateEffectStore updates the effect store configuration.
func (m *Manager) UpdateEffectStore(ctx context.Context, config EffectStoreConfig) error {
	if config.Name == "" {
		return ErrEffectStoreNameRequired
	}

	_, err := m.ct.js.UpdateStream(ctx, *m.streamConfig(config))
	return err
}

// DeleteEffectStore deletes the effect store.
func (m *Manager) DeleteEffectStore(ctx context.Context, name string) error {
	if name == "" {
		return ErrEffectStoreNameRequired
	}
	return m.ct.js.DeleteStream(ctx, fmt.Sprintf(effectStoreNameTmpl, name))
}

// NewManager initializes a new Manager instance with a NATS connection.
func NewManager(ctx context.Context, nc *nats.Conn, opts ...ManagerOption) (*Manager, error) {
	ct, err := New(ctx, nc)
	if err != nil {
		return nil, err
	}

	m := &Manager{ct: ct}

	for _, o := range opts {
		if err := o.addOption(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}
