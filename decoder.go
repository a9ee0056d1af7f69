package figcn

import (
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Format identifies the syntax of a rules document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf guesses the format of a rules file from its extension. Files
// without a known extension are treated as YAML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml", "":
		return FormatYAML
	default:
		return Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	}
}

// Decoder turns a rules document into its entries, in document order.
type Decoder func(data []byte) ([]Entry, error)

// Decoders is the set of document formats a RuleStore can read.
type Decoders map[Format]Decoder

// DefaultDecoders returns decoders for YAML and JSON documents.
func DefaultDecoders() Decoders {
	return Decoders{
		FormatYAML: decodeYAML,
		FormatJSON: decodeJSON,
	}
}

// HasDecoder reports whether documents in format f can be read.
func (d Decoders) HasDecoder(f Format) bool {
	_, ok := d[f]
	return ok
}

type document struct {
	InterceptionRule []Entry `yaml:"interception_rule" json:"interception_rule"`
}

func decodeYAML(data []byte) ([]Entry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.InterceptionRule, nil
}

func decodeJSON(data []byte) ([]Entry, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.InterceptionRule, nil
}
