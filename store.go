package figcn

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/getlantern/golog"
	"github.com/pkg/errors"
)

// SourceKind selects where a RuleStore gets its rules from.
type SourceKind string

const (
	// SourceInline uses the built-in rules and never touches the file system.
	SourceInline SourceKind = "inline"

	// SourceExternal reads a rules document, falling back to the built-in rules
	// when it is missing, unreadable or holds no valid rules.
	SourceExternal SourceKind = "external"
)

// Source describes a rule source.
type Source struct {
	Kind SourceKind
	Path string
}

// RuleStore holds the active RuleSet. Loads are serialized and publish their
// result atomically, so Current can be called from any goroutine at any time.
type RuleStore struct {
	log      golog.Logger
	vetter   *vetter
	decoders Decoders
	fallback *RuleSet
	current  atomic.Value // *RuleSet
	lastErr  atomic.Value // loadResult
	mx       sync.Mutex
}

type loadResult struct {
	err error
}

// NewRuleStore creates a store that starts out with fallback as its active
// rule set and can read documents in the formats covered by decoders. It
// panics if fallback is empty, because then the store could end up without
// rules.
func NewRuleStore(fallback *RuleSet, decoders Decoders) *RuleStore {
	if fallback == nil || fallback.Len() == 0 {
		panic("figcn: fallback rule set must not be empty")
	}
	if decoders == nil {
		decoders = Decoders{}
	}
	s := &RuleStore{
		log:      golog.LoggerFor("figcn-store"),
		vetter:   newVetter(),
		decoders: decoders,
		fallback: fallback,
	}
	s.current.Store(fallback)
	s.lastErr.Store(loadResult{})
	return s
}

// Current returns the active rule set.
func (s *RuleStore) Current() *RuleSet {
	return s.current.Load().(*RuleSet)
}

// LastError returns the reason the most recent Load fell back to the built-in
// rules, or nil if it did not.
func (s *RuleStore) LastError() error {
	return s.lastErr.Load().(loadResult).err
}

// Load reads rules from src, publishes them and returns them. It never fails:
// whenever src yields no usable rules the built-in rules are published
// instead.
func (s *RuleStore) Load(src Source) *RuleSet {
	s.mx.Lock()
	defer s.mx.Unlock()

	var rs *RuleSet
	var err error
	if src.Kind == SourceInline {
		s.log.Debug("Using built-in rules")
		rs = s.fallback
	} else {
		rs, err = s.load(src.Path)
		if err != nil {
			reason := fallbackReason(err)
			metricFallbacks.WithLabelValues(reason).Inc()
			s.log.Errorf("Using built-in rules, %v rule source: %v", reason, err)
			rs = s.fallback
		}
	}

	s.lastErr.Store(loadResult{err: err})
	s.current.Store(rs)
	metricRulesLoaded.Set(float64(rs.Len()))

	s.log.Debugf("Loaded %v rules", rs.Len())
	for i, r := range rs.rules {
		s.log.Debugf("Rule %d: %v", i+1, r)
	}
	return rs
}

func (s *RuleStore) load(path string) (*RuleSet, error) {
	if path == "" {
		return nil, errors.Wrap(ErrConfigUnavailable, "no rules file configured")
	}

	format := FormatOf(path)
	if !s.decoders.HasDecoder(format) {
		return nil, errors.Wrapf(ErrConfigUnavailable, "no decoder for %q documents", format)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrConfigUnavailable, "rules file %v does not exist", path)
	} else if err != nil {
		return nil, errors.Wrapf(ErrConfigUnavailable, "could not read %v: %v", path, err)
	}

	entries, err := s.decoders[format](data)
	if err != nil {
		return nil, errors.Wrapf(ErrConfigParse, "%v: %v", path, err)
	}

	rules, rejected := s.vetter.vetAll(entries)
	metricRulesRejected.Add(float64(len(rejected)))
	for _, r := range rejected {
		s.log.Debugf("Discarded rule in %v: %v", path, r)
	}
	if len(rules) == 0 {
		return nil, errors.Wrapf(ErrEmptyRuleSet, "%v has %d entries, none valid", path, len(entries))
	}
	return newRuleSet(rules), nil
}
