package goquery_test

import (
	"testing"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/goquery"
	"github.com/fwojciec/harvest/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<html>
<head>
  <title> Drill   Page </title>
  <meta name="description" content="A cordless drill">
  <meta property="og:image" content="/img/og.png">
  <link rel="canonical" href="/products/drill">
</head>
<body>
  <h1 class="title">  Cordless
     Drill </h1>
  <span class="price">$79</span>
  <ul class="tags"><li>tools</li><li> </li><li>power</li></ul>
  <a class="manual" href="/manuals/drill.pdf">Manual</a>
  <div class="sku" data-sku="/abc-1">SKU</div>
  <div class="desc"><p>Strong <b>drill</b></p></div>
</body>
</html>`

const pageURL = "https://shop.example/products/drill"

func rule(field, query string, mode harvest.ExtractMode, match harvest.MatchPolicy) harvest.SelectorRule {
	return harvest.SelectorRule{Field: field, Query: query, Mode: mode, Match: match}
}

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("applies rules in declaration order", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{
			rule("title", "h1.title", harvest.TextMode(), harvest.MatchFirst),
			rule("price", ".price", harvest.TextMode(), harvest.MatchFirst),
			rule("tags", "ul.tags li", harvest.TextMode(), harvest.MatchAll),
		}

		got, err := goquery.NewExtractor(nil).Extract(productPage, pageURL, rules)

		require.NoError(t, err)
		assert.Equal(t, harvest.Fields{
			{Name: "title", Value: "Cordless Drill"},
			{Name: "price", Value: "$79"},
			{Name: "tags", Value: []string{"tools", "power"}},
		}, got.Fields)
	})

	t.Run("returns null for rules matching nothing", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{
			rule("rating", ".rating", harvest.TextMode(), harvest.MatchFirst),
			rule("reviews", ".review", harvest.TextMode(), harvest.MatchAll),
		}

		got, err := goquery.NewExtractor(nil).Extract(productPage, pageURL, rules)

		require.NoError(t, err)
		assert.Equal(t, harvest.Fields{{Name: "rating"}, {Name: "reviews"}}, got.Fields)
	})

	t.Run("resolves link attributes against the page url", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{
			rule("manual", "a.manual", harvest.AttributeMode("href"), harvest.MatchFirst),
			rule("sku", ".sku", harvest.AttributeMode("data-sku"), harvest.MatchFirst),
			rule("missing", ".sku", harvest.AttributeMode("data-missing"), harvest.MatchFirst),
		}

		got, err := goquery.NewExtractor(nil).Extract(productPage, pageURL, rules)

		require.NoError(t, err)
		v, _ := got.Fields.Get("manual")
		assert.Equal(t, "https://shop.example/manuals/drill.pdf", v)
		v, _ = got.Fields.Get("sku")
		assert.Equal(t, "/abc-1", v)
		v, ok := got.Fields.Get("missing")
		assert.True(t, ok)
		assert.Nil(t, v)
	})

	t.Run("extracts inner html", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{rule("desc", ".desc", harvest.HTMLMode(), harvest.MatchFirst)}

		got, err := goquery.NewExtractor(nil).Extract(productPage, pageURL, rules)

		require.NoError(t, err)
		v, _ := got.Fields.Get("desc")
		assert.Equal(t, "<p>Strong <b>drill</b></p>", v)
	})

	t.Run("converts markdown mode through the converter", func(t *testing.T) {
		t.Parallel()

		var gotHTML, gotBase string
		conv := &mock.Converter{
			ConvertFn: func(html string, baseURL string) (string, error) {
				gotHTML, gotBase = html, baseURL
				return "Strong **drill**", nil
			},
		}
		rules := harvest.RuleSet{rule("desc", ".desc", harvest.MarkdownMode(), harvest.MatchFirst)}

		got, err := goquery.NewExtractor(conv).Extract(productPage, pageURL, rules)

		require.NoError(t, err)
		v, _ := got.Fields.Get("desc")
		assert.Equal(t, "Strong **drill**", v)
		assert.Equal(t, "<p>Strong <b>drill</b></p>", gotHTML)
		assert.Equal(t, pageURL, gotBase)
	})

	t.Run("reads page metadata", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{rule("title", "h1", harvest.TextMode(), harvest.MatchFirst)}

		got, err := goquery.NewExtractor(nil).Extract(productPage, pageURL, rules)

		require.NoError(t, err)
		require.NotNil(t, got.Metadata)
		assert.Equal(t, "Drill Page", got.Metadata.Title)
		assert.Equal(t, "A cordless drill", got.Metadata.Description)
		assert.Equal(t, "https://shop.example/img/og.png", got.Metadata.OGImage)
		assert.Equal(t, "https://shop.example/products/drill", got.Metadata.Canonical)
	})

	t.Run("empty document yields null fields", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{rule("title", "h1", harvest.TextMode(), harvest.MatchFirst)}

		got, err := goquery.NewExtractor(nil).Extract("", pageURL, rules)

		require.NoError(t, err)
		assert.Equal(t, harvest.Fields{{Name: "title"}}, got.Fields)
		assert.Nil(t, got.Metadata)
	})

	t.Run("rejects binary content", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{rule("title", "h1", harvest.TextMode(), harvest.MatchFirst)}

		_, err := goquery.NewExtractor(nil).Extract("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", pageURL, rules)

		require.Error(t, err)
		assert.Equal(t, harvest.EINVALID, harvest.ErrorCode(err))
	})
}

func TestExtractor_Validate(t *testing.T) {
	t.Parallel()

	t.Run("accepts valid queries", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{
			rule("title", "h1.title, h1", harvest.TextMode(), harvest.MatchFirst),
			rule("links", "a[href^='/products/']", harvest.AttributeMode("href"), harvest.MatchAll),
		}

		assert.NoError(t, goquery.NewExtractor(nil).Validate(rules))
	})

	t.Run("reports every invalid query", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{
			rule("title", "h1[", harvest.TextMode(), harvest.MatchFirst),
			rule("price", ".price", harvest.TextMode(), harvest.MatchFirst),
			rule("tags", "li:frobnicate", harvest.TextMode(), harvest.MatchAll),
		}

		err := goquery.NewExtractor(nil).Validate(rules)

		require.Error(t, err)
		assert.Equal(t, harvest.ERULE, harvest.ErrorCode(err))
		msg := harvest.ErrorMessage(err)
		assert.Contains(t, msg, `field "title"`)
		assert.Contains(t, msg, `field "tags"`)
		assert.NotContains(t, msg, `field "price"`)
	})

	t.Run("rejects markdown mode without a converter", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{rule("desc", ".desc", harvest.MarkdownMode(), harvest.MatchFirst)}

		err := goquery.NewExtractor(nil).Validate(rules)

		assert.Equal(t, harvest.ERULE, harvest.ErrorCode(err))
	})

	t.Run("rejects structurally invalid rule sets", func(t *testing.T) {
		t.Parallel()

		err := goquery.NewExtractor(nil).Validate(harvest.RuleSet{})

		assert.Equal(t, harvest.ERULE, harvest.ErrorCode(err))
	})
}
