package main

import (
	"os"

	"github.com/getlantern/golog"
	"github.com/spf13/pflag"

	"github.com/getlantern/figcn"
)

// Check vets the rules document at path and reports every accepted and
// rejected entry. It returns false if a proxy loading the document would fall
// back to the built-in rules.
func Check(path string) bool {
	log := golog.LoggerFor("figcn-checkrules")

	format := figcn.FormatOf(path)
	decoders := figcn.DefaultDecoders()
	if !decoders.HasDecoder(format) {
		log.Errorf("No decoder for %q documents", format)
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("Could not read %v: %v", path, err)
		return false
	}

	entries, err := decoders[format](data)
	if err != nil {
		log.Errorf("Could not parse %v: %v", path, err)
		return false
	}

	rules, rejected := figcn.VetEntries(entries)
	for _, err := range rejected {
		log.Errorf("Rejected %v", err)
	}
	for i, r := range rules {
		log.Debugf("Accepted rule %d: %v", i+1, r)
	}
	log.Debugf("%v: %d entries, %d valid, %d rejected", path, len(entries), len(rules), len(rejected))

	if len(rules) == 0 {
		log.Errorf("%v has no valid rules, the built-in rules would be used", path)
		return false
	}
	return true
}

func main() {
	flags := pflag.NewFlagSet("checkrules", pflag.ExitOnError)
	path := flags.StringP("file", "f", "rules.yaml", "rules document to check")
	flags.Parse(os.Args[1:])

	if !Check(*path) {
		os.Exit(1)
	}
}
