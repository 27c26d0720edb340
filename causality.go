package causality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/causality-labs/causality/clock"
	"github.com/causality-labs/causality/codec"
	"github.com/causality-labs/causality/id"
	"github.com/causality-labs/causality/types"
)

type option func(o *Causality) error

func (f option) addOption(o *Causality) error {
	return f(o)
}

// Option models an option when creating a Causality instance.
type Option interface {
	addOption(o *Causality) error
}

// TypeRegistry sets an explicit type registry.
func TypeRegistry(types types.Registry) Option {
	return option(func(o *Causality) error {
		o.types = types
		return nil
	})
}

// Clock sets a clock implementation. Default is clock.Time.
func Clock(clock clock.Clock) Option {
	return option(func(o *Causality) error {
		o.clock = clock
		return nil
	})
}

// ID sets a unique ID generator implementation. Default is id.NUID.
func ID(id id.ID) Option {
	return option(func(o *Causality) error {
		o.id = id
		return nil
	})
}

func Logger(logger *slog.Logger) Option {
	return option(func(o *Causality) error {
		o.logger = logger
		return nil
	})
}

type Causality struct {
	ctx    context.Context
	logger *slog.Logger
	nc     *nats.Conn
	js     jetstream.JetStream

	id    id.ID
	clock clock.Clock
	types types.Registry
}

// UnpackRecord unpacks a Record from a NATS message.
func (c *Causality) UnpackRecord(msg jetstream.Msg) (*Record, error) {
	recordType := msg.Headers().Get(recordTypeHdr)
	codecName := msg.Headers().Get(recordCodecHdr)

	var (
		data interface{}
		err  error
	)

	cd, ok := codec.Codecs[codecName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", codec.ErrCodecNotRegistered, codecName)
	}

	// No type registry, so assume byte slice.
	if c.types == nil {
		var b []byte
		err = cd.Unmarshal(msg.Data(), &b)
		data = b
	} else {
		var v any
		v, err = c.types.Init(recordType)
		if err == nil {
			err = cd.Unmarshal(msg.Data(), v)
			data = v
		}
	}
	if err != nil {
		return nil, err
	}

	var seq uint64
	// If this message is not from a native JS subscription, the reply will not
	// be set. This is where metadata is parsed from. In cases where a message is
	// re-published, we don't want to fail if we can't get the sequence.
	if msg.Reply() != "" {
		md, err := msg.Metadata()
		if err != nil {
			return nil, fmt.Errorf("unpack: failed to get metadata: %s", err)
		}
		seq = md.Sequence.Stream
	}

	recordTime, err := time.Parse(recordTimeFormat, msg.Headers().Get(recordTimeHdr))
	if err != nil {
		return nil, fmt.Errorf("unpack: failed to parse record time: %s", err)
	}

	meta := make(map[string]string)

	for h := range msg.Headers() {
		if strings.HasPrefix(h, recordMetaPrefixHdr) {
			key := h[len(recordMetaPrefixHdr):]
			meta[key] = msg.Headers().Get(h)
		}
	}

	return &Record{
		ID:            msg.Headers().Get(nats.MsgIdHdr),
		Entity:        msg.Headers().Get(recordEntityHdr),
		SchemaVersion: msg.Headers().Get(recordSchemaHdr),
		Type:          recordType,
		Time:          recordTime,
		Data:          data,
		Meta:          meta,
		subject:       msg.Subject(),
		sequence:      seq,
	}, nil
}

// EffectStore returns a handle to the named effect store. The underlying
// stream is not created until Create is called on the store.
func (c *Causality) EffectStore(name string) *EffectStore {
	return &EffectStore{
		name: name,
		ct:   c,
	}
}

// New initializes a new Causality instance with a NATS connection.
func New(ctx context.Context, nc *nats.Conn, opts ...Option) (*Causality, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}

	ct := &Causality{
		ctx:    ctx,
		logger: slog.Default(),
		nc:     nc,
		js:     js,
		id:     id.NUID,
		clock:  clock.Time,
	}

	for _, o := range opts {
		if err := o.addOption(ct); err != nil {
			return nil, err
		}
	}

	return ct, nil
}
