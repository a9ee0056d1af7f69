package figcn

import (
	"github.com/pkg/errors"
)

const (
	// DefaultGateHost is the only host whose requests are considered.
	DefaultGateHost = "www.figma.com"

	// DefaultGatePrefix is the path prefix requests must have to be considered.
	DefaultGatePrefix = "/webpack-artifacts/assets/"

	// DefaultTag prefixes the rewrite log line.
	DefaultTag = "FigCN"

	langBase = "https://kailous.github.io/figma-zh-CN-localized/lang/"
)

// DefaultEntries returns the built-in rules used whenever the configured
// source is missing or yields nothing usable. Each call returns a fresh slice.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Host:       DefaultGateHost,
			Pattern:    `^/webpack-artifacts/assets/figma_app-[a-f0-9]{16}\.min\.en\.json(\.br)?$`,
			ReplaceURL: langBase + "zh.json",
		},
		{
			Host:       DefaultGateHost,
			Pattern:    `^/webpack-artifacts/assets/auth_iframe-[a-f0-9]+\.min\.en\.json(\.br)?$`,
			ReplaceURL: langBase + "auth_iframe-zh.json",
		},
		{
			Host:       DefaultGateHost,
			Pattern:    `^/webpack-artifacts/assets/community-[a-f0-9]+\.min\.en\.json(\.br)?$`,
			ReplaceURL: langBase + "community-zh.json",
		},
	}
}

// DefaultRuleSet compiles DefaultEntries.
func DefaultRuleSet() *RuleSet {
	rs, err := FallbackRuleSet(DefaultEntries())
	if err != nil {
		panic(err)
	}
	return rs
}

// FallbackRuleSet builds a fallback rule set from entries. Unlike a loaded
// source, every entry must be valid and there must be at least one.
func FallbackRuleSet(entries []Entry) (*RuleSet, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyRuleSet
	}
	rules, rejected := newVetter().vetAll(entries)
	if len(rejected) > 0 {
		return nil, errors.Errorf("invalid fallback rules: %v", rejected)
	}
	rs := newRuleSet(rules)
	rs.fallback = true
	return rs, nil
}
