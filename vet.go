package figcn

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

type vetter struct {
	validate *validator.Validate
}

func newVetter() *vetter {
	return &vetter{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// VetEntries checks every entry and compiles the valid ones into rules, in
// order. Invalid entries are skipped and reported in the returned errors, each
// wrapping ErrRuleValidation.
func VetEntries(entries []Entry) ([]*Rule, []error) {
	return newVetter().vetAll(entries)
}

func (v *vetter) vetAll(entries []Entry) ([]*Rule, []error) {
	rules := make([]*Rule, 0, len(entries))
	var rejected []error
	for i, e := range entries {
		r, err := v.vet(e)
		if err != nil {
			rejected = append(rejected, errors.Wrapf(err, "entry %d", i+1))
			continue
		}
		rules = append(rules, r)
	}
	return rules, rejected
}

// vet trims the entry's fields, validates them and compiles the pattern.
func (v *vetter) vet(e Entry) (*Rule, error) {
	e.Host = strings.ToLower(strings.TrimSpace(e.Host))
	e.Pattern = strings.TrimSpace(e.Pattern)
	e.ReplaceURL = strings.TrimSpace(e.ReplaceURL)

	if err := v.validate.Struct(e); err != nil {
		return nil, errors.Wrapf(ErrRuleValidation, "%v", err)
	}

	compiled, err := compilePattern(e.Pattern)
	if err != nil {
		return nil, errors.Wrapf(ErrRuleValidation, "could not compile pattern %q: %v", e.Pattern, err)
	}

	target, err := url.Parse(e.ReplaceURL)
	if err != nil || target.Host == "" {
		return nil, errors.Wrapf(ErrRuleValidation, "replace_url %q is not an absolute http(s) URL", e.ReplaceURL)
	}

	return &Rule{
		Host:       e.Host,
		Pattern:    e.Pattern,
		ReplaceURL: e.ReplaceURL,
		pattern:    compiled,
		target:     target,
	}, nil
}

// compilePattern anchors pattern to the start of the input. Nothing anchors
// the end unless the pattern itself does.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	// Compile it bare first; the wrapping group could otherwise balance an
	// unbalanced pattern such as "a)|(b".
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, err
	}
	return regexp.Compile(`^(?:` + pattern + `)`)
}
