package pegger

import (
	"fmt"
	"strconv"
	"strings"
)

// Source is one external price feed: the token to write, the URL to poll,
// the dot-separated path to the numeric value in the JSON body, and the
// scale at which the extracted value becomes a mantissa.
type Source struct {
	Token string
	URL   string
	Path  string
	Scale uint32
}

// ParseSources parses the configured source list. Sources are separated by
// ";" and each one is a token|url|jsonPath|scale tuple.
func ParseSources(raw string) ([]Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var sources []Source
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 4 {
			return nil, fmt.Errorf("malformed peg source %q: want token|url|jsonPath|scale", entry)
		}
		scale, err := strconv.ParseUint(strings.TrimSpace(parts[3]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed peg source %q: bad scale: %w", entry, err)
		}
		sources = append(sources, Source{
			Token: strings.TrimSpace(parts[0]),
			URL:   strings.TrimSpace(parts[1]),
			Path:  strings.TrimSpace(parts[2]),
			Scale: uint32(scale),
		})
	}
	return sources, nil
}
