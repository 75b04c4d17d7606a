package render

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrorData is what an error page shows.
type ErrorData struct {
	Status  int
	Message string
	Name    string
	// Detail is extra text shown in debug mode.
	Detail string
}

// ErrorTemplate renders an error page.
type ErrorTemplate func(ErrorData) string

// DefaultErrorTemplate is used when the build provides no error page.
func DefaultErrorTemplate(d ErrorData) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString(`  <meta charset="utf-8">` + "\n")
	fmt.Fprintf(&b, "  <title>%d %s</title>\n", d.Status, escapeHTML(d.Message))
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "  <h1>%d</h1>\n  <p>%s</p>\n", d.Status, escapeHTML(d.Message))
	if d.Detail != "" {
		fmt.Fprintf(&b, "  <pre>%s</pre>\n", escapeHTML(d.Detail))
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// ParseErrorTemplate builds an ErrorTemplate from an HTML page with
// {{ status }}, {{ message }}, {{ name }} and {{ detail }} markers.
func ParseErrorTemplate(src string) ErrorTemplate {
	return func(d ErrorData) string {
		return strings.NewReplacer(
			"{{ status }}", strconv.Itoa(d.Status),
			"{{ message }}", escapeHTML(d.Message),
			"{{ name }}", escapeHTML(d.Name),
			"{{ detail }}", escapeHTML(d.Detail),
		).Replace(src)
	}
}

// ErrorTemplateOf returns the loaded error template, or the default one.
func ErrorTemplateOf(r *Resources) ErrorTemplate {
	if r != nil {
		if tmpl, err := Lookup[ErrorTemplate](r, ResourceErrorTemplate); err == nil && tmpl != nil {
			return tmpl
		}
	}
	return DefaultErrorTemplate
}
