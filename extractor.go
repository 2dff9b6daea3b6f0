package harvest

// Extraction holds the fields extracted from one document.
type Extraction struct {
	// Fields contains one entry per rule, in rule order. Rules that matched
	// nothing have a nil value.
	Fields Fields

	Metadata *PageMetadata
}

// Extractor applies selector rules to HTML documents.
type Extractor interface {
	// Validate checks every rule's query syntax before any page is fetched.
	// Returns ERULE describing all invalid rules.
	Validate(rules RuleSet) error

	// Extract parses the document and applies the rules. Missing matches are
	// null values, not errors. baseURL resolves relative link attributes.
	// Returns EINVALID if the content cannot be parsed as a document.
	Extract(html string, baseURL string, rules RuleSet) (*Extraction, error)
}
