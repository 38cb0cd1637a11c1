package language

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"empacy/pkg/protocol"
)

// Concept is a stored ubiquitous-language term.
type Concept struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	ShortName       string         `json:"shortName" yaml:"shortName"`
	Domain          string         `json:"domain" yaml:"domain"`
	Definition      string         `json:"definition" yaml:"definition"`
	Synonyms        []string       `json:"synonyms" yaml:"synonyms"`
	RelatedConcepts []string       `json:"relatedConcepts" yaml:"relatedConcepts"`
	CreatedAt       time.Time      `json:"createdAt" yaml:"createdAt"`
	LastUpdated     time.Time      `json:"lastUpdated" yaml:"lastUpdated"`
	Version         int            `json:"version" yaml:"version"`
	Metadata        map[string]any `json:"metadata" yaml:"metadata"`
}

// ConceptInput is a concept as submitted by a caller. Source, Confidence and
// Tags seed the metadata defaults of a new concept.
type ConceptInput struct {
	Name            string         `json:"name" yaml:"name"`
	ShortName       string         `json:"shortName,omitempty" yaml:"shortName,omitempty"`
	Domain          string         `json:"domain" yaml:"domain"`
	Definition      string         `json:"definition" yaml:"definition"`
	Synonyms        []string       `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
	RelatedConcepts []string       `json:"relatedConcepts,omitempty" yaml:"relatedConcepts,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Source          string         `json:"source,omitempty" yaml:"source,omitempty"`
	Confidence      string         `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Tags            []string       `json:"tags,omitempty" yaml:"tags,omitempty"`

	// invalid holds a field type error found while decoding. It is reported
	// when the concept is processed so that earlier batch items still commit.
	invalid *protocol.ValidationError
}

// UnmarshalJSON decodes a concept object without failing on a non-object
// item or wrongly typed fields; those surface as a ValidationError from
// Validate.
func (c *ConceptInput) UnmarshalJSON(data []byte) error {
	*c = ConceptInput{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		c.fail("concept", "must be an object")
		return nil
	}

	strFields := []struct {
		key string
		dst *string
	}{
		{"name", &c.Name}, {"shortName", &c.ShortName}, {"domain", &c.Domain},
		{"definition", &c.Definition}, {"source", &c.Source}, {"confidence", &c.Confidence},
	}
	for _, f := range strFields {
		if v, ok := raw[f.key]; ok && !isNull(v) {
			if err := json.Unmarshal(v, f.dst); err != nil {
				c.fail(f.key, "must be a string")
			}
		}
	}

	listFields := []struct {
		key string
		dst *[]string
	}{
		{"synonyms", &c.Synonyms}, {"relatedConcepts", &c.RelatedConcepts}, {"tags", &c.Tags},
	}
	for _, f := range listFields {
		if v, ok := raw[f.key]; ok && !isNull(v) {
			if err := json.Unmarshal(v, f.dst); err != nil {
				c.fail(f.key, "must be a list of strings")
			}
		}
	}

	if v, ok := raw["metadata"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &c.Metadata); err != nil {
			c.fail("metadata", "must be an object")
		}
	}
	return nil
}

func (c *ConceptInput) fail(field, reason string) {
	if c.invalid == nil {
		c.invalid = &protocol.ValidationError{Field: field, Reason: reason}
	}
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Validate checks the required text fields and any decode-time type errors.
func (c *ConceptInput) Validate() error {
	if c.invalid != nil {
		return c.invalid
	}
	for _, f := range []struct{ field, value string }{
		{"name", c.Name}, {"domain", c.Domain}, {"definition", c.Definition},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &protocol.ValidationError{Field: f.field, Reason: "concept must have a non-empty " + f.field}
		}
	}
	return nil
}

// ShortName derives a short form: the uppercased initials of a multi-word
// name, or the first four characters of a single word, uppercased.
func ShortName(name string) string {
	words := strings.Fields(name)
	if len(words) == 1 {
		r := []rune(words[0])
		return strings.ToUpper(string(r[:min(4, len(r))]))
	}
	return Initials(name)
}

// Initials returns the uppercased first character of each word of name.
func Initials(name string) string {
	var b strings.Builder
	for _, w := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// IsAcronym reports whether shortName is a 2 to 5 character string equal to
// the initials of name.
func IsAcronym(name, shortName string) bool {
	n := utf8.RuneCountInString(shortName)
	return n >= 2 && n <= 5 && shortName == Initials(name)
}

func union(existing, added []string) []string {
	out := existing
	seen := make(map[string]bool, len(existing)+len(added))
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range added {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
