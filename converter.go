package harvest

// Converter converts HTML to Markdown.
type Converter interface {
	// Convert transforms an HTML fragment into Markdown. Relative links and
	// images are resolved against baseURL when it is non-empty.
	Convert(html string, baseURL string) (string, error)
}
