package figcn

import (
	"net/http"
	"sync/atomic"

	"github.com/elazarl/goproxy"
	"github.com/getlantern/golog"
	"github.com/getlantern/mtime"
)

// Verbosity controls what the Interceptor logs per request.
type Verbosity string

const (
	// Silent logs rewrites only.
	Silent Verbosity = "silent"

	// Verbose also logs requests that passed the gate without matching a rule.
	Verbose Verbosity = "verbose"
)

// RuleSource supplies the rule set to evaluate requests against. *RuleStore
// implements it.
type RuleSource interface {
	Current() *RuleSet
}

// Options configures an Interceptor.
type Options struct {
	// Tag prefixes log lines. Defaults to DefaultTag.
	Tag string

	// Verbosity defaults to Silent.
	Verbosity Verbosity

	// Gate defaults to DefaultGate().
	Gate Gate

	// AllowHosts lists extra hosts whose TLS connections are intercepted in
	// addition to the ones the rules need.
	AllowHosts []string
}

// Interceptor applies rewrite decisions to requests flowing through the proxy.
type Interceptor struct {
	log        golog.Logger
	tag        string
	verbosity  Verbosity
	rules      RuleSource
	matcher    *Matcher
	allowHosts []string
	mitm       atomic.Pointer[mitmList]
}

// mitmList is the set of domains to intercept, computed for one RuleSet.
type mitmList struct {
	rs      *RuleSet
	domains []string
}

// NewInterceptor creates an Interceptor evaluating requests against the rules
// from rules.
func NewInterceptor(rules RuleSource, opts Options) *Interceptor {
	if opts.Tag == "" {
		opts.Tag = DefaultTag
	}
	if opts.Verbosity == "" {
		opts.Verbosity = Silent
	}
	if opts.Gate == (Gate{}) {
		opts.Gate = DefaultGate()
	}
	return &Interceptor{
		log:        golog.LoggerFor("figcn"),
		tag:        opts.Tag,
		verbosity:  opts.Verbosity,
		rules:      rules,
		matcher:    NewMatcher(opts.Gate),
		allowHosts: opts.AllowHosts,
	}
}

// Rewrite evaluates req and, if a rule matches, points req at the rule's
// target. It logs exactly one line per rewrite and, unless verbose, nothing
// otherwise.
func (i *Interceptor) Rewrite(req *http.Request) Decision {
	host := req.URL.Host
	if host == "" {
		host = req.Host
	}

	start := mtime.Now()
	d := i.matcher.Evaluate(i.rules.Current(), host, req.URL.RequestURI())
	metricEvaluationDuration.Observe(mtime.Now().Sub(start).Seconds())

	switch d.Outcome {
	case Matched:
		target := d.Rule.Target()
		old := req.URL.String()
		req.URL = target
		req.Host = target.Host
		metricRewrites.Inc()
		i.log.Debugf("[%v] matched: %v -> %v", i.tag, old, d.Target)
	case NoMatch:
		if i.verbosity == Verbose {
			i.log.Debugf("[%v] no rule matched: %v", i.tag, req.URL)
		}
	}
	return d
}

// HandleRequest adapts Rewrite to goproxy's request handler signature.
func (i *Interceptor) HandleRequest(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	i.Rewrite(req)
	return req, nil
}

// ShouldIntercept reports whether TLS connections to host need to be
// decrypted so their requests can be evaluated.
func (i *Interceptor) ShouldIntercept(host string) bool {
	return coveredBy(host, i.mitmDomainsFor(i.rules.Current()))
}

// mitmDomainsFor returns the domains to intercept for rs, recomputing them
// only when the published rule set changes.
func (i *Interceptor) mitmDomainsFor(rs *RuleSet) []string {
	if l := i.mitm.Load(); l != nil && l.rs == rs {
		return l.domains
	}
	l := &mitmList{rs: rs, domains: mitmDomains(i.matcher.Gate().Host, rs, i.allowHosts)}
	i.mitm.Store(l)
	return l.domains
}

// HandleConnect adapts ShouldIntercept to goproxy's CONNECT handler signature.
// Connections that don't need inspection are tunneled untouched.
func (i *Interceptor) HandleConnect(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
	if i.ShouldIntercept(host) {
		return goproxy.MitmConnect, host
	}
	return goproxy.OkConnect, host
}
