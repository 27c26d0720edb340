package causality

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/causality-labs/causality/codec"
)

const (
	recordEntityHdr     = "causality-entity"
	recordTypeHdr       = "causality-type"
	recordTimeHdr       = "causality-time"
	recordCodecHdr      = "causality-codec"
	recordSchemaHdr     = "causality-schema-version"
	recordMetaPrefixHdr = "causality-meta-"
	recordTimeFormat    = time.RFC3339Nano
)

type appendOpts struct {
	expSubj string
	expSeq  *uint64
}

type appendOptFn func(o *appendOpts) error

func (f appendOptFn) appendOpt(o *appendOpts) error {
	return f(o)
}

// AppendOption is an option for the store Append operation.
type AppendOption interface {
	appendOpt(o *appendOpts) error
}

// ExpectSequence indicates that the expected sequence of the implicit subject
// should be the value provided. If not, a conflict is indicated.
func ExpectSequence(seq uint64) AppendOption {
	return appendOptFn(func(o *appendOpts) error {
		o.expSeq = &seq
		return nil
	})
}

// ExpectSequenceSubject indicates that the expected sequence of the explicit
// subject should be the value provided. If not, a conflict is indicated.
func ExpectSequenceSubject(seq uint64, subject string) AppendOption {
	return appendOptFn(func(o *appendOpts) error {
		pattern, err := parsePattern(subject)
		if err != nil {
			return err
		}
		o.expSeq = &seq
		o.expSubj = pattern
		return nil
	})
}

type replayOpts struct {
	filters  []string
	afterSeq *uint64
	upToSeq  *uint64
}

type replayOptFn func(o *replayOpts) error

func (f replayOptFn) replayOpt(o *replayOpts) error {
	return f(o)
}

// ReplayOption is an option for the store Replay operation.
type ReplayOption interface {
	replayOpt(o *replayOpts) error
}

// AfterSequence specifies the sequence after which records should be fetched.
// This is useful when partially applied state has been derived up to a specific
// sequence and only the latest records need to be fetched.
func AfterSequence(seq uint64) ReplayOption {
	return replayOptFn(func(o *replayOpts) error {
		o.afterSeq = &seq
		return nil
	})
}

// UpToSequence specifies the sequence of the last record that should be
// fetched. This is useful to control how much history is replayed.
func UpToSequence(seq uint64) ReplayOption {
	return replayOptFn(func(o *replayOpts) error {
		o.upToSeq = &seq
		return nil
	})
}

// Filters specifies the subject filters to use when replaying records.
// A filter can be in the form of `<entity-type>`, `<entity-type>.<entity-id>`,
// or `<entity-type>.<entity-id>.<effect-type>`. Wildcards can be used as well.
func Filters(filters ...string) ReplayOption {
	return replayOptFn(func(o *replayOpts) error {
		o.filters = filters
		return nil
	})
}

// RecordStore is the minimal store surface the dispatcher depends on. It is
// implemented by EffectStore and MemStore.
type RecordStore interface {
	Append(ctx context.Context, records []*Record, opts ...AppendOption) (uint64, error)
	Replay(ctx context.Context, rp Replayer, opts ...ReplayOption) (uint64, error)
}

// EffectStore provides effect log semantics over a NATS stream. Records are
// deduplicated by the server using the record ID (the idempotency key) as the
// NATS msg ID.
type EffectStore struct {
	name          string
	ct            *Causality
	subjectPrefix string
	subjectFunc   func(record *Record) string
}

// wrapRecord validates a record and fills in defaults prior to packing.
func (s *EffectStore) wrapRecord(record *Record) (*Record, error) {
	if record.Data == nil {
		return nil, ErrRecordDataRequired
	}

	if record.Entity == "" {
		return nil, ErrRecordEntityRequired
	}
	if !entityRegex.MatchString(record.Entity) {
		return nil, ErrRecordEntityInvalid
	}

	if s.ct.types == nil {
		if record.Type == "" {
			return nil, ErrRecordTypeRequired
		}
	} else {
		t, err := s.ct.types.Lookup(record.Data)
		if err != nil {
			return nil, err
		}

		if record.Type == "" {
			record.Type = t
		} else if record.Type != t {
			return nil, fmt.Errorf("wrong type for record data: %s", record.Type)
		}
	}

	if v, ok := record.Data.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	// Set ID if empty.
	if record.ID == "" {
		record.ID = s.ct.id.New()
	}

	// Set time if empty.
	if record.Time.IsZero() {
		record.Time = s.ct.clock.Now().Local()
	}

	return record, nil
}

// packRecord packs a record into a NATS message. The advantage of using NATS
// headers is that the server supports creating a consumer that _only_ gets the
// headers without the data as an optimization for some use cases.
func (s *EffectStore) packRecord(subject string, record *Record) (*nats.Msg, error) {
	// Marshal the data.
	var (
		data      []byte
		err       error
		codecName string
	)

	if s.ct.types == nil {
		data, err = codec.Binary.Marshal(record.Data)
		codecName = codec.Binary.Name()
	} else {
		data, err = s.ct.types.Marshal(record.Data)
		codecName = s.ct.types.Codec().Name()
	}
	if err != nil {
		return nil, err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data

	// Map record envelope to NATS header.
	msg.Header.Set(nats.MsgIdHdr, record.ID)
	msg.Header.Set(recordTypeHdr, record.Type)
	msg.Header.Set(recordTimeHdr, record.Time.Format(recordTimeFormat))
	msg.Header.Set(recordCodecHdr, codecName)
	msg.Header.Set(recordEntityHdr, record.Entity)

	if record.SchemaVersion != "" {
		msg.Header.Set(recordSchemaHdr, record.SchemaVersion)
	}

	for k, v := range record.Meta {
		msg.Header.Set(fmt.Sprintf("%s%s", recordMetaPrefixHdr, k), v)
	}

	return msg, nil
}

// parsePattern parses a subject pattern into the full form.
func parsePattern(subject string) (string, error) {
	if subject == "" {
		return "*.*.*", nil
	}

	toks := strings.Split(subject, ".")
	if len(toks) > 3 {
		return "", fmt.Errorf("subject can have at most three tokens")
	}

	ntoks := make([]string, 3)
	// Individual tokens are not validated since this will downstream.
	for i := range ntoks {
		if i < len(toks) {
			ntoks[i] = toks[i]
		} else {
			ntoks[i] = "*"
		}
	}

	return fmt.Sprintf("%s.%s.%s", ntoks[0], ntoks[1], ntoks[2]), nil
}

// Replay loads records and folds them into a replayer, such as a model of
// actor state. The sequence of the last record that was folded in is returned,
// including when an error occurs. Note, the filter can take several forms
// depending on the need. The full template is
// `<entity-type>.<entity-id>.<effect-type>`. If only the entity type is
// provided, all records for all entities of that type will be loaded. If the
// entity type and entity ID are provided, all records for that specific entity
// will be loaded. If the full subject is provided, only records of that
// specific type for that specific entity will be loaded. Wildcards can be
// used as well.
func (s *EffectStore) Replay(ctx context.Context, rp Replayer, opts ...ReplayOption) (uint64, error) {
	// Configure opts.
	var o replayOpts
	for _, opt := range opts {
		if err := opt.replayOpt(&o); err != nil {
			return 0, err
		}
	}

	// If still no filters, default to all.
	if len(o.filters) == 0 {
		o.filters = []string{"*.*.*"}
	}

	// Build subjects from filters.
	subjects := make([]string, len(o.filters))
	for i, p := range o.filters {
		pp, err := parsePattern(p)
		if err != nil {
			return 0, err
		}
		subjects[i] = fmt.Sprintf("%s.%s", s.subjectPrefix, pp)
	}

	// Ephemeral ordered consumer.. read as fast as possible with least overhead.
	sopts := jetstream.OrderedConsumerConfig{
		FilterSubjects: subjects,
	}

	// Set starting point.
	if o.afterSeq != nil {
		if *o.afterSeq == 0 {
			sopts.DeliverPolicy = jetstream.DeliverAllPolicy
		} else {
			sopts.OptStartSeq = *o.afterSeq + 1
			sopts.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		}
	} else {
		sopts.DeliverPolicy = jetstream.DeliverAllPolicy
	}

	con, err := s.ct.js.OrderedConsumer(s.ct.ctx, s.name, sopts)
	if err != nil {
		return 0, err
	}

	// The number of messages to consume until we are caught up
	// to the current known state.
	pending := con.CachedInfo().NumPending

	if pending == 0 {
		return 0, nil
	}

	msgCtx, err := con.Messages()
	if err != nil {
		return 0, err
	}
	defer msgCtx.Stop()

	var lastSeq uint64
	var count uint64
	for {
		msg, err := msgCtx.Next()
		if err != nil {
			return 0, err
		}

		record, err := s.ct.UnpackRecord(msg)
		if err != nil {
			return 0, err
		}

		// If up to sequence is set, break if the record sequence is greater
		// than the up to sequence. This check is here in case there is a gap
		// between sequence numbers.
		if o.upToSeq != nil && record.sequence > *o.upToSeq {
			break
		}

		if err := rp.Replay(record); err != nil {
			return lastSeq, err
		}
		lastSeq = record.sequence

		// Check if we've reached the up to sequence.
		if o.upToSeq != nil && lastSeq == *o.upToSeq {
			break
		}

		count++
		if count == pending {
			break
		}
	}

	return lastSeq, nil
}

// Append appends one or more records to the subject's record sequence.
// It returns the resulting sequence number of the last appended record.
func (s *EffectStore) Append(ctx context.Context, records []*Record, opts ...AppendOption) (uint64, error) {
	// Configure opts.
	var o appendOpts
	for _, opt := range opts {
		if err := opt.appendOpt(&o); err != nil {
			return 0, err
		}
	}

	if len(records) == 0 {
		return 0, nil
	}

	// Prepare messages.
	var msgs []*nats.Msg

	for i, record := range records {
		r, err := s.wrapRecord(record)
		if err != nil {
			return 0, err
		}

		subject := s.subjectFunc(r)
		msg, err := s.packRecord(subject, r)
		if err != nil {
			return 0, err
		}
		msg.Header.Set(nats.ExpectedStreamHdr, s.name)

		if i == 0 {
			if o.expSeq != nil {
				if o.expSubj == "" {
					idx := strings.LastIndex(subject, ".")
					expSubj := fmt.Sprintf("%s.*", subject[:idx])
					msg.Header.Set(jetstream.ExpectedLastSubjSeqHeader, fmt.Sprintf("%d", *o.expSeq))
					msg.Header.Set(jetstream.ExpectedLastSubjSeqSubjHeader, expSubj)
				} else {
					expSubj := fmt.Sprintf("%s.%s", s.subjectPrefix, o.expSubj)
					msg.Header.Set(jetstream.ExpectedLastSubjSeqHeader, fmt.Sprintf("%d", *o.expSeq))
					msg.Header.Set(jetstream.ExpectedLastSubjSeqSubjHeader, expSubj)
				}
			}
		}

		msgs = append(msgs, msg)
	}

	var ack *jetstream.PubAck
	var err error
	for i, msg := range msgs {
		ack, err = s.ct.js.PublishMsg(s.ct.ctx, msg)
		if err != nil {
			if strings.Contains(err.Error(), "wrong last sequence") {
				return 0, ErrSequenceConflict
			}
			return 0, err
		}

		records[i].subject = msg.Subject
		records[i].sequence = ack.Sequence
	}

	return ack.Sequence, nil
}

// parseSubjectPrefix parses and validates that the subject prefix
// ends with "*.*.*" or ">".
func parseSubjectPrefix(s string) (string, error) {
	toks := strings.Split(s, ".")
	if len(toks) < 2 {
		return "", fmt.Errorf("subject must end with '*.*.*' or '>'")
	}

	// Can be the only wildcard.
	if toks[len(toks)-1] == ">" {
		if slices.Contains(toks[:len(toks)-1], "*") {
			return "", fmt.Errorf("wildcards not allowed before '>'")
		}

		return s[:len(s)-2], nil
	}

	if len(toks) < 4 {
		return "", fmt.Errorf("subject must have a prefix before '*.*.*'")
	}

	if toks[len(toks)-3] == "*" && toks[len(toks)-2] == "*" && toks[len(toks)-1] == "*" {
		if slices.Contains(toks[:len(toks)-3], "*") {
			return "", fmt.Errorf("wildcards not allowed before '*.*.*'")
		}

		// Three wildcard tokens and dots.
		return s[:len(s)-6], nil
	}

	return "", fmt.Errorf("subject must end with '*.*.*' or '>'")
}

// Create creates the effect store given the configuration. The stream
// name is the name of the store and the subjects default to "{name}.>".
func (s *EffectStore) Create(ctx context.Context, config *jetstream.StreamConfig) error {
	if config == nil {
		config = &jetstream.StreamConfig{}
	}

	config.Name = s.name
	switch len(config.Subjects) {
	case 1:
	case 0:
		config.Subjects = []string{fmt.Sprintf("%s.>", s.name)}
	default:
		return fmt.Errorf("only one subject is supported for effect stores")
	}

	prefix, err := parseSubjectPrefix(config.Subjects[0])
	if err != nil {
		return err
	}
	s.subjectPrefix = prefix
	s.subjectFunc = func(record *Record) string {
		return fmt.Sprintf("%s.%s.%s", prefix, record.Entity, record.Type)
	}

	_, err = s.ct.js.CreateStream(ctx, *config)
	return err
}

// Update updates the effect store configuration.
func (s *EffectStore) Update(ctx context.Context, config *jetstream.StreamConfig) error {
	if config == nil {
		config = &jetstream.StreamConfig{}
	}
	config.Name = s.name
	_, err := s.ct.js.UpdateStream(ctx, *config)
	return err
}

// Delete deletes the effect store.
func (s *EffectStore) Delete(ctx context.Context) error {
	return s.ct.js.DeleteStream(ctx, s.name)
}
