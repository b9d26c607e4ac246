package ollama

import (
	"bytes"
	"sync"
	"text/template"
)

// parsed prompt templates keyed by their source text
var templates sync.Map

// RenderTemplate renders a prompt template with the provided data. Parsed
// templates are cached since the same prompt renders once per document.
func RenderTemplate(tmpl string, data any) (string, error) {
	var tpl *template.Template
	if v, ok := templates.Load(tmpl); ok {
		tpl = v.(*template.Template)
	} else {
		parsed, err := template.New("prompt").Option("missingkey=zero").Parse(tmpl)
		if err != nil {
			return "", err
		}
		templates.Store(tmpl, parsed)
		tpl = parsed
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
