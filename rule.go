package harvest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ModeKind identifies how a matched element is turned into a value.
type ModeKind string

// Extraction mode kinds.
const (
	ModeText      ModeKind = "text"
	ModeAttribute ModeKind = "attribute"
	ModeHTML      ModeKind = "html"
	ModeMarkdown  ModeKind = "markdown"
)

// ExtractMode is a tagged variant: Attr is only meaningful when Kind is
// ModeAttribute. Its textual form is "text", "html", "markdown", or
// "attribute:<name>".
type ExtractMode struct {
	Kind ModeKind
	Attr string
}

// TextMode extracts the whitespace-normalized text of the element.
func TextMode() ExtractMode { return ExtractMode{Kind: ModeText} }

// HTMLMode extracts the inner HTML of the element.
func HTMLMode() ExtractMode { return ExtractMode{Kind: ModeHTML} }

// MarkdownMode extracts the inner HTML of the element converted to Markdown.
func MarkdownMode() ExtractMode { return ExtractMode{Kind: ModeMarkdown} }

// AttributeMode extracts the named attribute of the element.
func AttributeMode(name string) ExtractMode {
	return ExtractMode{Kind: ModeAttribute, Attr: name}
}

// ParseExtractMode parses the textual form of a mode.
// An empty string is the text mode.
func ParseExtractMode(s string) (ExtractMode, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == string(ModeText):
		return TextMode(), nil
	case s == string(ModeHTML):
		return HTMLMode(), nil
	case s == string(ModeMarkdown):
		return MarkdownMode(), nil
	case strings.HasPrefix(s, string(ModeAttribute)+":"):
		name := strings.TrimSpace(strings.TrimPrefix(s, string(ModeAttribute)+":"))
		if name == "" {
			return ExtractMode{}, Errorf(ERULE, "attribute mode requires a name")
		}
		return AttributeMode(name), nil
	default:
		return ExtractMode{}, Errorf(ERULE, "unknown extraction mode %q", s)
	}
}

// String returns the textual form of the mode.
func (m ExtractMode) String() string {
	if m.Kind == ModeAttribute {
		return string(ModeAttribute) + ":" + m.Attr
	}
	return string(m.Kind)
}

// Validate returns an error if the mode is not one of the known variants.
func (m ExtractMode) Validate() error {
	switch m.Kind {
	case ModeText, ModeHTML, ModeMarkdown:
		return nil
	case ModeAttribute:
		if m.Attr == "" {
			return Errorf(ERULE, "attribute mode requires a name")
		}
		return nil
	default:
		return Errorf(ERULE, "unknown extraction mode %q", m.Kind)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m ExtractMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ExtractMode) UnmarshalText(text []byte) error {
	mode, err := ParseExtractMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// MatchPolicy decides how many matches a rule keeps.
type MatchPolicy string

// Match policies.
const (
	// MatchFirst keeps the first match as a single string.
	MatchFirst MatchPolicy = "first"
	// MatchAll keeps every match as a sequence of strings.
	MatchAll MatchPolicy = "all"
)

// SelectorRule maps a field name to a structural query and how to read it.
type SelectorRule struct {
	Field string
	Query string
	Mode  ExtractMode
	Match MatchPolicy
}

// Validate returns an error if the rule is structurally invalid.
// Query syntax is checked by the Extractor.
func (r SelectorRule) Validate() error {
	if strings.TrimSpace(r.Field) == "" {
		return Errorf(ERULE, "field name required")
	}
	if strings.TrimSpace(r.Query) == "" {
		return Errorf(ERULE, "field %q: query required", r.Field)
	}
	if err := r.Mode.Validate(); err != nil {
		return Errorf(ERULE, "field %q: %s", r.Field, ErrorMessage(err))
	}
	switch r.Match {
	case MatchFirst, MatchAll:
	default:
		return Errorf(ERULE, "field %q: unknown match policy %q", r.Field, r.Match)
	}
	return nil
}

// RuleSet is an ordered collection of selector rules applied to one document.
//
// In JSON it is an object keyed by field name. Each value is either a query
// string, shorthand for {"query": q, "mode": "text", "match": "first"}, or an
// object with "query", "mode" and "match" members. "match" defaults to
// "first" and "mode" to "text".
type RuleSet []SelectorRule

// Fields returns the declared field names in order.
func (rs RuleSet) Fields() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Field
	}
	return names
}

// Validate returns an ERULE error describing every invalid rule, or nil.
func (rs RuleSet) Validate() error {
	if len(rs) == 0 {
		return Errorf(ERULE, "at least one selector rule required")
	}
	var problems []string
	seen := make(map[string]bool, len(rs))
	for _, r := range rs {
		if err := r.Validate(); err != nil {
			problems = append(problems, ErrorMessage(err))
			continue
		}
		if seen[r.Field] {
			problems = append(problems, fmt.Sprintf("field %q: duplicate field name", r.Field))
			continue
		}
		seen[r.Field] = true
	}
	if len(problems) > 0 {
		return Errorf(ERULE, "invalid rules: %s", strings.Join(problems, "; "))
	}
	return nil
}

type ruleJSON struct {
	Query string      `json:"query"`
	Mode  string      `json:"mode,omitempty"`
	Match MatchPolicy `json:"match,omitempty"`
}

// MarshalJSON encodes the rule set as an ordered object of full rule forms.
func (rs RuleSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range rs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.Field)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(ruleJSON{Query: r.Query, Mode: r.Mode.String(), Match: r.Match})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a rule set, keeping declaration order. Duplicate
// keys are kept so that Validate can report them.
func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	var rules RuleSet
	isNull, err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		rule, err := decodeRule(key, raw)
		if err != nil {
			return err
		}
		rules = append(rules, rule)
		return nil
	})
	if err != nil {
		return err
	}
	if isNull {
		*rs = nil
		return nil
	}
	*rs = rules
	return nil
}

func decodeRule(field string, raw json.RawMessage) (SelectorRule, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var query string
		if err := json.Unmarshal(raw, &query); err != nil {
			return SelectorRule{}, err
		}
		return SelectorRule{Field: field, Query: query, Mode: TextMode(), Match: MatchFirst}, nil
	}

	var v ruleJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return SelectorRule{}, Errorf(ERULE, "field %q: rule must be a query string or object", field)
	}
	mode, err := ParseExtractMode(v.Mode)
	if err != nil {
		return SelectorRule{}, Errorf(ERULE, "field %q: %s", field, ErrorMessage(err))
	}
	match := v.Match
	if match == "" {
		match = MatchFirst
	}
	return SelectorRule{Field: field, Query: v.Query, Mode: mode, Match: match}, nil
}
