// Package goquery implements the selector engine with goquery and cascadia.
package goquery

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/fwojciec/harvest"
	"golang.org/x/net/html"
)

// Ensure Extractor implements harvest.Extractor at compile time.
var _ harvest.Extractor = (*Extractor)(nil)

// resolvedAttrs are attributes holding URLs that are made absolute against
// the page URL.
var resolvedAttrs = map[string]bool{
	"href":   true,
	"src":    true,
	"action": true,
}

// Extractor applies selector rules to HTML documents.
type Extractor struct {
	converter harvest.Converter
}

// NewExtractor creates an Extractor. The converter is used by the markdown
// mode and may be nil when no rule uses it.
func NewExtractor(converter harvest.Converter) *Extractor {
	return &Extractor{converter: converter}
}

// Validate compiles every rule's query and reports all problems in a single
// ERULE error.
func (e *Extractor) Validate(rules harvest.RuleSet) error {
	if err := rules.Validate(); err != nil {
		return err
	}
	var problems []string
	for _, r := range rules {
		if _, err := cascadia.ParseGroup(r.Query); err != nil {
			problems = append(problems, fmt.Sprintf("field %q: invalid query %q: %v", r.Field, r.Query, err))
			continue
		}
		if r.Mode.Kind == harvest.ModeMarkdown && e.converter == nil {
			problems = append(problems, fmt.Sprintf("field %q: markdown mode is not available", r.Field))
		}
	}
	if len(problems) > 0 {
		return harvest.Errorf(harvest.ERULE, "invalid rules: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Extract parses the document and applies rules in declaration order.
// Rules are expected to have passed Validate.
func (e *Extractor) Extract(content string, baseURL string, rules harvest.RuleSet) (*harvest.Extraction, error) {
	if strings.IndexByte(content, 0) >= 0 {
		return nil, harvest.Errorf(harvest.EINVALID, "content is not an HTML document")
	}
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "failed to parse HTML: %v", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	fields := make(harvest.Fields, 0, len(rules))
	for _, r := range rules {
		v, err := e.apply(doc, base, baseURL, r)
		if err != nil {
			return nil, err
		}
		fields = append(fields, harvest.Field{Name: r.Field, Value: v})
	}

	return &harvest.Extraction{
		Fields:   fields,
		Metadata: extractMetadata(doc, base),
	}, nil
}

// apply returns nil when nothing non-empty matched, a string for MatchFirst,
// or a []string for MatchAll.
func (e *Extractor) apply(doc *goquery.Document, base *url.URL, baseURL string, r harvest.SelectorRule) (any, error) {
	matcher, err := cascadia.Compile(r.Query)
	if err != nil {
		return nil, harvest.Errorf(harvest.ERULE, "field %q: invalid query %q: %v", r.Field, r.Query, err)
	}

	var values []string
	var readErr error
	doc.FindMatcher(matcher).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		v, err := e.read(sel, base, baseURL, r.Mode)
		if err != nil {
			readErr = err
			return false
		}
		if v == "" {
			return true
		}
		values = append(values, v)
		return r.Match == harvest.MatchAll
	})
	if readErr != nil {
		return nil, readErr
	}

	switch {
	case len(values) == 0:
		return nil, nil
	case r.Match == harvest.MatchAll:
		return values, nil
	default:
		return values[0], nil
	}
}

func (e *Extractor) read(sel *goquery.Selection, base *url.URL, baseURL string, mode harvest.ExtractMode) (string, error) {
	switch mode.Kind {
	case harvest.ModeAttribute:
		v, ok := sel.Attr(mode.Attr)
		if !ok {
			return "", nil
		}
		v = strings.TrimSpace(v)
		if resolvedAttrs[strings.ToLower(mode.Attr)] {
			v = resolveURL(base, v)
		}
		return v, nil
	case harvest.ModeHTML:
		v, err := sel.Html()
		if err != nil {
			return "", harvest.Errorf(harvest.EINVALID, "failed to render HTML: %v", err)
		}
		return strings.TrimSpace(v), nil
	case harvest.ModeMarkdown:
		if e.converter == nil {
			return "", harvest.Errorf(harvest.ERULE, "markdown mode is not available")
		}
		inner, err := sel.Html()
		if err != nil {
			return "", harvest.Errorf(harvest.EINVALID, "failed to render HTML: %v", err)
		}
		md, err := e.converter.Convert(inner, baseURL)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(md), nil
	default:
		return collapseSpace(sel.Text()), nil
	}
}

// extractMetadata reads document-level metadata from the head.
func extractMetadata(doc *goquery.Document, base *url.URL) *harvest.PageMetadata {
	meta := func(attr, key string) string {
		v, _ := doc.Find(fmt.Sprintf(`meta[%s=%q]`, attr, key)).First().Attr("content")
		return strings.TrimSpace(v)
	}
	canonical, _ := doc.Find(`link[rel="canonical"]`).First().Attr("href")

	m := &harvest.PageMetadata{
		Title:         collapseSpace(doc.Find("title").First().Text()),
		Description:   meta("name", "description"),
		Keywords:      meta("name", "keywords"),
		Author:        meta("name", "author"),
		Canonical:     resolveURL(base, strings.TrimSpace(canonical)),
		OGTitle:       meta("property", "og:title"),
		OGDescription: meta("property", "og:description"),
		OGImage:       resolveURL(base, meta("property", "og:image")),
	}
	if *m == (harvest.PageMetadata{}) {
		return nil
	}
	return m
}

// resolveURL resolves href against base, returning href unchanged when
// either cannot be parsed.
func resolveURL(base *url.URL, href string) string {
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func collapseSpace(s string) string {
	var buf bytes.Buffer
	for _, word := range strings.Fields(s) {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(word)
	}
	return buf.String()
}
