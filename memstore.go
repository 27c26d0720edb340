package causality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// MemStore is an in-process record store for tests and development. It
// honors the same append and replay options as EffectStore: expected
// sequence checks result in ErrSequenceConflict and records are
// deduplicated by their idempotency key, with a duplicate append being a
// no-op that reports the original sequence.
type MemStore struct {
	mu      sync.Mutex
	logger  *slog.Logger
	records []*Record
	keys    map[string]uint64
	lseq    uint64
}

func NewMemStore() *MemStore {
	return &MemStore{
		logger: slog.Default().With(slog.String("store", "memory")),
		keys:   make(map[string]uint64),
	}
}

func (s *MemStore) subject(record *Record) string {
	return fmt.Sprintf("%s.%s", record.Entity, record.Type)
}

// matchSubject reports whether a three-token subject matches a three-token
// pattern where "*" matches any single token.
func matchSubject(subject, pattern string) bool {
	stoks := strings.Split(subject, ".")
	ptoks := strings.Split(pattern, ".")
	if len(stoks) != len(ptoks) {
		return false
	}
	for i, p := range ptoks {
		if p != "*" && p != stoks[i] {
			return false
		}
	}
	return true
}

// lastSequence returns the sequence of the last record whose subject matches
// the pattern, or zero if none do.
func (s *MemStore) lastSequence(pattern string) uint64 {
	for i := len(s.records) - 1; i >= 0; i-- {
		if matchSubject(s.records[i].subject, pattern) {
			return s.records[i].sequence
		}
	}
	return 0
}

// Append appends one or more records to the store. It returns the sequence
// number of the last appended record. A record whose key has been seen
// before is not appended again; its original sequence is returned instead.
func (s *MemStore) Append(ctx context.Context, records []*Record, opts ...AppendOption) (uint64, error) {
	var o appendOpts
	for _, opt := range opts {
		if err := opt.appendOpt(&o); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) == 0 {
		return s.lseq, nil
	}

	// Validate all records before any mutation so a failed append leaves
	// the store untouched.
	for _, record := range records {
		if record.Data == nil {
			return 0, ErrRecordDataRequired
		}
		if record.Entity == "" {
			return 0, ErrRecordEntityRequired
		}
		if !entityRegex.MatchString(record.Entity) {
			return 0, ErrRecordEntityInvalid
		}
		if record.Type == "" {
			return 0, ErrRecordTypeRequired
		}
		if v, ok := record.Data.(validator); ok {
			if err := v.Validate(); err != nil {
				return 0, err
			}
		}
	}

	if o.expSeq != nil {
		pattern := o.expSubj
		if pattern == "" {
			// Default to the first record's entity, any type.
			pattern = fmt.Sprintf("%s.*", records[0].Entity)
		}
		if last := s.lastSequence(pattern); last != *o.expSeq {
			return 0, ErrSequenceConflict
		}
	}

	lseq := s.lseq
	for _, record := range records {
		if record.ID != "" {
			if seq, ok := s.keys[record.ID]; ok {
				// Duplicate key, treat as a no-op.
				lseq = seq
				continue
			}
		}

		s.lseq++
		record.subject = s.subject(record)
		record.sequence = s.lseq
		s.records = append(s.records, record)
		if record.ID != "" {
			s.keys[record.ID] = record.sequence
		}
		lseq = record.sequence
	}

	s.logger.Debug("append",
		slog.Uint64("last_seq", lseq),
		slog.Int("num_records", len(records)),
	)

	return lseq, nil
}

// Replay folds stored records into the replayer in order, honoring the
// filter and sequence range options. The sequence of the last folded record
// is returned.
func (s *MemStore) Replay(ctx context.Context, rp Replayer, opts ...ReplayOption) (uint64, error) {
	var o replayOpts
	for _, opt := range opts {
		if err := opt.replayOpt(&o); err != nil {
			return 0, err
		}
	}

	if len(o.filters) == 0 {
		o.filters = []string{"*.*.*"}
	}

	patterns := make([]string, len(o.filters))
	for i, f := range o.filters {
		p, err := parsePattern(f)
		if err != nil {
			return 0, err
		}
		patterns[i] = p
	}

	s.mu.Lock()
	records := make([]*Record, len(s.records))
	copy(records, s.records)
	s.mu.Unlock()

	var lastSeq uint64
	for _, record := range records {
		if o.afterSeq != nil && record.sequence <= *o.afterSeq {
			continue
		}
		if o.upToSeq != nil && record.sequence > *o.upToSeq {
			break
		}

		matched := false
		for _, p := range patterns {
			if matchSubject(record.subject, p) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		if err := rp.Replay(record); err != nil {
			return lastSeq, err
		}
		lastSeq = record.sequence
	}

	return lastSeq, nil
}

var _ RecordStore = (*MemStore)(nil)
