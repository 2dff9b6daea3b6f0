package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fwojciec/harvest"
)

// Run executes the template save command.
func (c *TemplateSaveCmd) Run(deps *Dependencies) error {
	tmpl := &harvest.Template{
		Name:        c.Name,
		Description: c.Description,
	}

	if c.File != "" {
		if len(c.Selector) > 0 {
			err := harvest.Errorf(harvest.EINVALID, "use either --file or --selector, not both")
			fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
			return err
		}
		rules, err := readRulesFile(c.File)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
			return err
		}
		tmpl.Rules = rules
	} else {
		rules, err := ParseSelectors(c.Selector)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
			return err
		}
		tmpl.Rules = rules
	}

	if deps.Extractor != nil {
		if err := deps.Extractor.Validate(tmpl.Rules); err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
			return err
		}
	}

	if err := deps.Templates.SaveTemplate(deps.Ctx, tmpl); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Saved template %q (%d fields)\n", tmpl.Name, len(tmpl.Rules))
	return nil
}

// readRulesFile reads a rule set from a JSON file holding either a bare
// selectors object or a template document with a "selectors" member.
func readRulesFile(path string) (harvest.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "cannot read %s: %v", path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "%s: invalid selectors JSON", path)
	}
	if raw, ok := doc["selectors"]; ok {
		data = raw
	}

	var rules harvest.RuleSet
	if err := json.Unmarshal(data, &rules); err != nil {
		if harvest.ErrorCode(err) == harvest.ERULE {
			return nil, err
		}
		return nil, harvest.Errorf(harvest.EINVALID, "%s: invalid selectors JSON", path)
	}
	return rules, nil
}

// Run executes the template list command.
func (c *TemplateListCmd) Run(deps *Dependencies) error {
	templates, err := deps.Templates.FindTemplates(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	if len(templates) == 0 {
		fmt.Fprintln(deps.Stdout, "No templates found. Use 'harvest template save' to create one.")
		return nil
	}

	for _, t := range templates {
		fmt.Fprintf(deps.Stdout, "%s  %d fields  %s\n", t.Name, len(t.Rules), t.Description)
	}
	return nil
}

// Run executes the template show command.
func (c *TemplateShowCmd) Run(deps *Dependencies) error {
	tmpl, err := deps.Templates.FindTemplateByName(deps.Ctx, c.Name)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	enc := json.NewEncoder(deps.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tmpl)
}
