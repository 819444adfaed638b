package util

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"
)

// forbiddenDirectives could pull in other templates or call arbitrary functions
var forbiddenDirectives = []string{"{{call", "{{define", "{{template", "{{block"}

// templateFuncs are available to every rendered template
var templateFuncs = template.FuncMap{
	"xml":   EscapeXML,
	"upper": strings.ToUpper,
}

// RenderTemplate renders a named template string with the given data.
// Missing keys are an error so a typo never renders as "<no value>".
func RenderTemplate(name, tmpl string, data any) (string, error) {
	for _, directive := range forbiddenDirectives {
		if strings.Contains(tmpl, directive) {
			return "", fmt.Errorf("template contains forbidden directive: %s", directive)
		}
	}

	t, err := template.New(name).
		Funcs(templateFuncs).
		Option("missingkey=error").
		Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}

// EscapeXML escapes s for use inside an XML attribute value
func EscapeXML(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

// TruncateString truncates a string to maxLen runes (Unicode-safe)
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
