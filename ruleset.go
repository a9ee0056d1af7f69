package figcn

import (
	"net/url"
	"regexp"

	"github.com/armon/go-radix"
)

// Entry is a single rule as written in a rules document, before it has been
// vetted.
type Entry struct {
	Host       string `yaml:"host" json:"host" validate:"required"`
	Pattern    string `yaml:"pattern" json:"pattern" validate:"required"`
	ReplaceURL string `yaml:"replace_url" json:"replace_url" validate:"required,http_url"`
}

// Rule is a vetted Entry. It maps requests for Host whose path matches the
// compiled pattern to ReplaceURL.
type Rule struct {
	Host       string
	Pattern    string
	ReplaceURL string

	pattern *regexp.Regexp
	target  *url.URL
}

// Matches reports whether the rule applies to the given (already normalized)
// host and path. The pattern only matches at the start of the path. A Rule
// that did not come from VetEntries never matches.
func (r *Rule) Matches(host, path string) bool {
	return r.pattern != nil && host == r.Host && r.pattern.MatchString(path)
}

// Target returns a copy of the parsed ReplaceURL.
func (r *Rule) Target() *url.URL {
	u := *r.target
	return &u
}

func (r *Rule) String() string {
	return r.Host + " " + r.Pattern + " -> " + r.ReplaceURL
}

// RuleSet is an ordered, immutable list of rules. Earlier rules win over later
// ones when more than one matches.
type RuleSet struct {
	rules    []*Rule
	byHost   *radix.Tree // host -> []*Rule, in source order
	fallback bool
}

// NewRuleSet vets entries and builds a RuleSet from the valid ones, in order.
// Invalid entries are left out and reported like VetEntries does.
func NewRuleSet(entries []Entry) (*RuleSet, []error) {
	rules, rejected := VetEntries(entries)
	return newRuleSet(rules), rejected
}

// newRuleSet builds a RuleSet from vetted rules, preserving their order. The
// slice is copied so later changes by the caller are not visible.
func newRuleSet(rules []*Rule) *RuleSet {
	rs := &RuleSet{
		rules:  make([]*Rule, len(rules)),
		byHost: radix.New(),
	}
	copy(rs.rules, rules)
	for _, r := range rs.rules {
		var bucket []*Rule
		if existing, ok := rs.byHost.Get(r.Host); ok {
			bucket = existing.([]*Rule)
		}
		rs.byHost.Insert(r.Host, append(bucket, r))
	}
	return rs
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Rules returns a copy of the rules in evaluation order.
func (rs *RuleSet) Rules() []*Rule {
	out := make([]*Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// IsFallback reports whether this is the built-in rule set.
func (rs *RuleSet) IsFallback() bool {
	return rs.fallback
}

// Hosts returns the distinct hosts the rules apply to, sorted.
func (rs *RuleSet) Hosts() []string {
	hosts := make([]string, 0, rs.byHost.Len())
	rs.byHost.Walk(func(host string, _ interface{}) bool {
		hosts = append(hosts, host)
		return false
	})
	return hosts
}

// forHost returns the rules for host in source order.
func (rs *RuleSet) forHost(host string) []*Rule {
	if v, ok := rs.byHost.Get(host); ok {
		return v.([]*Rule)
	}
	return nil
}
