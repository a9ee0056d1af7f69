package figcn

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *RuleStore {
	return NewRuleStore(DefaultRuleSet(), DefaultDecoders())
}

func external(path string) Source {
	return Source{Kind: SourceExternal, Path: path}
}

func TestLoadYAML(t *testing.T) {
	s := newTestStore()
	rs := s.Load(external("testdata/rules.yaml"))

	assert.NoError(t, s.LastError())
	assert.False(t, rs.IsFallback())
	assert.Same(t, rs, s.Current())
	require.Equal(t, 2, rs.Len())

	rules := rs.Rules()
	assert.Equal(t, "https://host/lang/zh.json", rules[0].ReplaceURL)
	assert.Equal(t, "www.figma.com", rules[1].Host, "host should have been trimmed and lowercased")
	assert.Equal(t, "https://host/lang/catchall.json", rules[1].ReplaceURL)
	assert.Equal(t, float64(2), testutil.ToFloat64(metricRulesLoaded))
}

func TestLoadJSON(t *testing.T) {
	s := newTestStore()
	rs := s.Load(external("testdata/rules.json"))

	assert.NoError(t, s.LastError())
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, "https://host/lang/community-zh.json", rs.Rules()[0].ReplaceURL)
}

func TestLoadFiltersInvalidEntries(t *testing.T) {
	s := newTestStore()
	before := testutil.ToFloat64(metricRulesRejected)

	rs := s.Load(external("testdata/mixed.yaml"))

	assert.NoError(t, s.LastError())
	assert.False(t, rs.IsFallback())
	require.Equal(t, 2, rs.Len(), "6 entries with 4 invalid should leave 2")
	assert.Equal(t, "https://host/lang/a.json", rs.Rules()[0].ReplaceURL)
	assert.Equal(t, "https://host/lang/f.json", rs.Rules()[1].ReplaceURL)
	assert.Equal(t, float64(4), testutil.ToFloat64(metricRulesRejected)-before)
}

func TestLoadFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		src    Source
		err    error
		reason string
	}{
		{"no path", external(""), ErrConfigUnavailable, "unavailable"},
		{"missing file", external("testdata/does-not-exist.yaml"), ErrConfigUnavailable, "unavailable"},
		{"no decoder", external("testdata/rules.toml"), ErrConfigUnavailable, "unavailable"},
		{"malformed", external("testdata/malformed.yaml"), ErrConfigParse, "parse"},
		{"empty document", external("testdata/empty.yaml"), ErrEmptyRuleSet, "empty"},
		{"no valid entries", external("testdata/invalid.yaml"), ErrEmptyRuleSet, "empty"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore()
			before := testutil.ToFloat64(metricFallbacks.WithLabelValues(tc.reason))

			rs := s.Load(tc.src)

			assert.True(t, rs.IsFallback())
			assert.Equal(t, DefaultRuleSet().Rules()[0].ReplaceURL, rs.Rules()[0].ReplaceURL)
			assert.Equal(t, len(DefaultEntries()), rs.Len())
			assert.ErrorIs(t, s.LastError(), tc.err)
			assert.Equal(t, float64(1), testutil.ToFloat64(metricFallbacks.WithLabelValues(tc.reason))-before)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interception_rule: []"), 0000))

	s := newTestStore()
	rs := s.Load(external(path))
	assert.True(t, rs.IsFallback())
	assert.ErrorIs(t, s.LastError(), ErrConfigUnavailable)
}

func TestLoadWithoutDecoders(t *testing.T) {
	s := NewRuleStore(DefaultRuleSet(), nil)
	rs := s.Load(external("testdata/rules.yaml"))

	assert.True(t, rs.IsFallback())
	assert.ErrorIs(t, s.LastError(), ErrConfigUnavailable)
}

func TestLoadInline(t *testing.T) {
	s := newTestStore()
	rs := s.Load(Source{Kind: SourceInline, Path: "testdata/rules.yaml"})

	assert.True(t, rs.IsFallback(), "inline source should ignore the path")
	assert.NoError(t, s.LastError())
}

func TestReloadReplacesAndRecovers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	s := newTestStore()

	require.NoError(t, os.WriteFile(path, mustRead(t, "testdata/rules.json"), 0644))
	// A JSON document in a .yaml file still parses, as JSON is valid YAML.
	rs := s.Load(external(path))
	require.False(t, rs.IsFallback())
	assert.Equal(t, 1, rs.Len())

	require.NoError(t, os.WriteFile(path, []byte("interception_rule: [oops"), 0644))
	rs = s.Load(external(path))
	assert.True(t, rs.IsFallback())
	assert.ErrorIs(t, s.LastError(), ErrConfigParse)

	require.NoError(t, os.WriteFile(path, mustRead(t, "testdata/rules.yaml"), 0644))
	rs = s.Load(external(path))
	assert.False(t, rs.IsFallback())
	assert.Equal(t, 2, rs.Len())
	assert.NoError(t, s.LastError())
}

func TestConcurrentReadsDuringReload(t *testing.T) {
	s := newTestStore()
	m := NewMatcher(DefaultGate())
	path := "/webpack-artifacts/assets/figma_app-0123456789abcdef.min.en.json"

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				rs := s.Current()
				assert.NotZero(t, rs.Len())
				d := m.Evaluate(rs, "www.figma.com", path)
				assert.Equal(t, Matched, d.Outcome)
			}
		}()
	}

	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			s.Load(external("testdata/rules.yaml"))
		} else {
			s.Load(external("testdata/missing.yaml"))
		}
	}
	close(stop)
	wg.Wait()
}

func TestNewRuleStorePanicsWithoutFallback(t *testing.T) {
	assert.Panics(t, func() { NewRuleStore(nil, DefaultDecoders()) })
	assert.Panics(t, func() { NewRuleStore(newRuleSet(nil), DefaultDecoders()) })
}

func mustRead(t *testing.T, path string) []byte {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
