package harvest_test

import (
	"encoding/json"
	"testing"

	"github.com/fwojciec/harvest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtractMode(t *testing.T) {
	t.Parallel()

	t.Run("empty string is text", func(t *testing.T) {
		t.Parallel()

		mode, err := harvest.ParseExtractMode("")
		require.NoError(t, err)
		assert.Equal(t, harvest.TextMode(), mode)
	})

	t.Run("parses attribute with name", func(t *testing.T) {
		t.Parallel()

		mode, err := harvest.ParseExtractMode("attribute:href")
		require.NoError(t, err)
		assert.Equal(t, harvest.ModeAttribute, mode.Kind)
		assert.Equal(t, "href", mode.Attr)
		assert.Equal(t, "attribute:href", mode.String())
	})

	t.Run("rejects attribute without name", func(t *testing.T) {
		t.Parallel()

		_, err := harvest.ParseExtractMode("attribute:")
		require.Error(t, err)
		assert.Equal(t, harvest.ERULE, harvest.ErrorCode(err))
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		t.Parallel()

		_, err := harvest.ParseExtractMode("innerText")
		require.Error(t, err)
		assert.Equal(t, harvest.ERULE, harvest.ErrorCode(err))
		assert.Contains(t, harvest.ErrorMessage(err), "innerText")
	})
}

func TestRuleSet_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("keeps declaration order and expands shorthand", func(t *testing.T) {
		t.Parallel()

		var rules harvest.RuleSet
		err := json.Unmarshal([]byte(`{
			"title": "h1",
			"links": {"query": "a.item", "mode": "attribute:href", "match": "all"},
			"body": {"query": "article", "mode": "html"}
		}`), &rules)
		require.NoError(t, err)

		require.Len(t, rules, 3)
		assert.Equal(t, []string{"title", "links", "body"}, rules.Fields())
		assert.Equal(t, harvest.SelectorRule{Field: "title", Query: "h1", Mode: harvest.TextMode(), Match: harvest.MatchFirst}, rules[0])
		assert.Equal(t, harvest.AttributeMode("href"), rules[1].Mode)
		assert.Equal(t, harvest.MatchAll, rules[1].Match)
		assert.Equal(t, harvest.HTMLMode(), rules[2].Mode)
		assert.Equal(t, harvest.MatchFirst, rules[2].Match)
	})

	t.Run("keeps duplicate keys for validation", func(t *testing.T) {
		t.Parallel()

		var rules harvest.RuleSet
		require.NoError(t, json.Unmarshal([]byte(`{"a": "h1", "a": "h2"}`), &rules))

		err := rules.Validate()
		require.Error(t, err)
		assert.Equal(t, harvest.ERULE, harvest.ErrorCode(err))
		assert.Contains(t, harvest.ErrorMessage(err), "duplicate")
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		t.Parallel()

		var rules harvest.RuleSet
		err := json.Unmarshal([]byte(`{"a": {"query": "h1", "mode": "bogus"}}`), &rules)
		require.Error(t, err)
	})

	t.Run("round trips through marshal", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{
			{Field: "z", Query: "h1", Mode: harvest.TextMode(), Match: harvest.MatchFirst},
			{Field: "a", Query: "img", Mode: harvest.AttributeMode("src"), Match: harvest.MatchAll},
		}

		data, err := json.Marshal(rules)
		require.NoError(t, err)
		assert.Equal(t, `{"z":{"query":"h1","mode":"text","match":"first"},"a":{"query":"img","mode":"attribute:src","match":"all"}}`, string(data))

		var decoded harvest.RuleSet
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, rules, decoded)
	})
}

func TestRuleSet_Validate(t *testing.T) {
	t.Parallel()

	t.Run("accepts valid rules", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{
			{Field: "title", Query: "h1", Mode: harvest.TextMode(), Match: harvest.MatchFirst},
		}
		assert.NoError(t, rules.Validate())
	})

	t.Run("rejects empty rule set", func(t *testing.T) {
		t.Parallel()

		err := harvest.RuleSet{}.Validate()
		require.Error(t, err)
		assert.Equal(t, harvest.ERULE, harvest.ErrorCode(err))
	})

	t.Run("reports every problem at once", func(t *testing.T) {
		t.Parallel()

		rules := harvest.RuleSet{
			{Field: "", Query: "h1", Mode: harvest.TextMode(), Match: harvest.MatchFirst},
			{Field: "price", Query: "", Mode: harvest.TextMode(), Match: harvest.MatchFirst},
			{Field: "sku", Query: ".sku", Mode: harvest.TextMode(), Match: "some"},
		}

		err := rules.Validate()
		require.Error(t, err)
		msg := harvest.ErrorMessage(err)
		assert.Contains(t, msg, "field name required")
		assert.Contains(t, msg, `field "price": query required`)
		assert.Contains(t, msg, `unknown match policy "some"`)
	})
}
