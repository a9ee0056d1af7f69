package figcn

import (
	"net"
	"strings"
)

// Outcome is the result of evaluating a request against a rule set.
type Outcome int

const (
	// Gated means the request is outside the gate host or path prefix and was
	// not checked against any rule.
	Gated Outcome = iota

	// NoMatch means the request passed the gate but no rule matched it.
	NoMatch

	// Matched means a rule matched and the request should be rewritten.
	Matched
)

func (o Outcome) String() string {
	switch o {
	case Gated:
		return "gated"
	case NoMatch:
		return "no match"
	case Matched:
		return "matched"
	default:
		return "unknown"
	}
}

// Gate is the host and path prefix a request must have before any rule is
// consulted.
type Gate struct {
	Host       string
	PathPrefix string
}

// DefaultGate returns the gate for figma's localization bundles.
func DefaultGate() Gate {
	return Gate{Host: DefaultGateHost, PathPrefix: DefaultGatePrefix}
}

// Decision is what Evaluate found for a request.
type Decision struct {
	Outcome Outcome

	// Rule and Target are only set when Outcome is Matched.
	Rule   *Rule
	Target string
}

// Rewrite reports whether the request should be rewritten to Target.
func (d Decision) Rewrite() bool {
	return d.Outcome == Matched
}

// Matcher decides which requests get rewritten. It holds no mutable state and
// is safe for concurrent use.
type Matcher struct {
	gate Gate
}

// NewMatcher creates a Matcher for the given gate. The gate host is compared
// case-insensitively.
func NewMatcher(gate Gate) *Matcher {
	gate.Host = normalizeHost(gate.Host)
	return &Matcher{gate: gate}
}

// Gate returns the normalized gate.
func (m *Matcher) Gate() Gate {
	return m.gate
}

// Evaluate checks host and path against rs. host may carry a port and any
// case; path is the request URI as presented. The first matching rule wins.
func (m *Matcher) Evaluate(rs *RuleSet, host, path string) Decision {
	host = normalizeHost(host)
	if host != m.gate.Host || !strings.HasPrefix(path, m.gate.PathPrefix) {
		return Decision{Outcome: Gated}
	}
	for _, rule := range rs.forHost(host) {
		if rule.Matches(host, path) {
			return Decision{Outcome: Matched, Rule: rule, Target: rule.ReplaceURL}
		}
	}
	return Decision{Outcome: NoMatch}
}

func normalizeHost(host string) string {
	return strings.ToLower(withoutPort(strings.TrimSpace(host)))
}

func withoutPort(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}
