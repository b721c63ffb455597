package template

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Context holds all variables available when rendering a step prompt.
type Context struct {
	// System variables
	RunID       string
	StepName    string
	RecordIndex int
	Attempt     int
	Timestamp   string

	// Record fields (from the dataset row)
	Record map[string]string
}

// Prompt is a loaded prompt template file.
type Prompt struct {
	Name    string
	Content string
}

// Render resolves template expressions in the given string.
// Uses Go's text/template syntax: {{.StepName}}, {{.Record.myfield}}.
// Returns the input unchanged if it contains no template delimiters.
func Render(tmpl string, ctx *Context) (string, error) {
	// Fast path: no template delimiters means no work to do.
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("template: parse: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("template: render: %w", err)
	}

	return buf.String(), nil
}

// LoadPrompt reads a prompt file. The prompt's name is the file's base name
// without extension.
func LoadPrompt(path string) (*Prompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template: reading prompt %s: %w", path, err)
	}

	base := filepath.Base(path)
	return &Prompt{
		Name:    strings.TrimSuffix(base, filepath.Ext(base)),
		Content: string(data),
	}, nil
}

// LoadPrompts reads a chain's prompt files in order.
func LoadPrompts(paths []string) ([]*Prompt, error) {
	prompts := make([]*Prompt, 0, len(paths))
	for _, path := range paths {
		p, err := LoadPrompt(path)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}
