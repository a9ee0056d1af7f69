package figcn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVetTrimsAndNormalizes(t *testing.T) {
	rules, rejected := VetEntries([]Entry{{
		Host:       "  WWW.Figma.COM ",
		Pattern:    "\t^/webpack-artifacts/ ",
		ReplaceURL: " https://host/lang/zh.json\n",
	}})
	require.Empty(t, rejected)
	require.Len(t, rules, 1)

	r := rules[0]
	assert.Equal(t, "www.figma.com", r.Host)
	assert.Equal(t, "^/webpack-artifacts/", r.Pattern)
	assert.Equal(t, "https://host/lang/zh.json", r.ReplaceURL)
	assert.True(t, r.Matches("www.figma.com", "/webpack-artifacts/assets/x.json"))
}

func TestVetRejectsInvalidEntries(t *testing.T) {
	valid := Entry{Host: "www.figma.com", Pattern: `^/a$`, ReplaceURL: "https://host/a.json"}

	tests := []struct {
		name  string
		entry Entry
	}{
		{"missing host", Entry{Pattern: valid.Pattern, ReplaceURL: valid.ReplaceURL}},
		{"blank host", Entry{Host: "   ", Pattern: valid.Pattern, ReplaceURL: valid.ReplaceURL}},
		{"missing pattern", Entry{Host: valid.Host, ReplaceURL: valid.ReplaceURL}},
		{"missing replace_url", Entry{Host: valid.Host, Pattern: valid.Pattern}},
		{"relative replace_url", Entry{Host: valid.Host, Pattern: valid.Pattern, ReplaceURL: "/lang/zh.json"}},
		{"opaque replace_url", Entry{Host: valid.Host, Pattern: valid.Pattern, ReplaceURL: "mailto:zh.json"}},
		{"replace_url with unknown scheme", Entry{Host: valid.Host, Pattern: valid.Pattern, ReplaceURL: "foo:bar"}},
		{"replace_url without host", Entry{Host: valid.Host, Pattern: valid.Pattern, ReplaceURL: "https://#frag"}},
		{"non-http replace_url", Entry{Host: valid.Host, Pattern: valid.Pattern, ReplaceURL: "ftp://host/zh.json"}},
		{"bad pattern", Entry{Host: valid.Host, Pattern: `^/(a$`, ReplaceURL: valid.ReplaceURL}},
		{"pattern balanced only by wrapping", Entry{Host: valid.Host, Pattern: `a)|(b`, ReplaceURL: valid.ReplaceURL}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rules, rejected := VetEntries([]Entry{valid, tc.entry, valid})
			assert.Len(t, rules, 2, "valid entries around the bad one should survive")
			require.Len(t, rejected, 1)
			assert.ErrorIs(t, rejected[0], ErrRuleValidation)
			assert.Contains(t, rejected[0].Error(), "entry 2")
		})
	}
}

func TestVetPreservesOrder(t *testing.T) {
	rules, rejected := VetEntries([]Entry{
		{Host: "a.com", Pattern: `^/1`, ReplaceURL: "https://host/1"},
		{Host: "", Pattern: `^/2`, ReplaceURL: "https://host/2"},
		{Host: "b.com", Pattern: `^/3`, ReplaceURL: "https://host/3"},
		{Host: "a.com", Pattern: `^/4`, ReplaceURL: "https://host/4"},
	})
	assert.Len(t, rejected, 1)

	var targets []string
	for _, r := range rules {
		targets = append(targets, r.ReplaceURL)
	}
	assert.Equal(t, []string{"https://host/1", "https://host/3", "https://host/4"}, targets)
}

func TestVetParsesTarget(t *testing.T) {
	rules, rejected := VetEntries([]Entry{{Host: "a.com", Pattern: `^/`, ReplaceURL: "https://host:8443/lang/zh.json?v=1"}})
	require.Empty(t, rejected)
	require.Len(t, rules, 1)

	target := rules[0].Target()
	assert.Equal(t, "host:8443", target.Host)
	assert.Equal(t, "/lang/zh.json", target.Path)

	target.Host = "changed"
	assert.Equal(t, "host:8443", rules[0].Target().Host, "callers get a copy")
}
