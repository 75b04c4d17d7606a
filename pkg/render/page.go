package render

import (
	"fmt"
	"io"
)

// PageData is the HTML shell of a page.
type PageData struct {
	// Lang is the html lang attribute. Defaults to "en".
	Lang string

	// Title is the page title.
	Title string

	// Meta contains meta tags for the page.
	Meta []MetaTag

	// Links contains link tags (stylesheets, preloads, favicon).
	Links []LinkTag

	// RootID is the id of the element the app mounts on.
	RootID string

	// Body is trusted HTML placed inside the root element.
	Body string

	// ContextScript is trusted JavaScript run before the bundles.
	ContextScript string

	// Scripts are the bundle script tags, in load order.
	Scripts []ScriptTag
}

// MetaTag represents a meta element in the document head.
type MetaTag struct {
	Name    string // name attribute
	Content string // content attribute
}

// LinkTag represents a link element in the document head.
type LinkTag struct {
	Rel  string // rel attribute
	Href string // href attribute
	As   string // as attribute, for preloads
}

// ScriptTag represents a script element.
type ScriptTag struct {
	Src    string // src attribute
	Defer  bool   // defer attribute
	Module bool   // type="module"
	NoMod  bool   // nomodule attribute
}

// RenderPage writes the document for page to w.
func RenderPage(w io.Writer, page PageData) error {
	pw := &pageWriter{w: w}

	lang := page.Lang
	if lang == "" {
		lang = "en"
	}
	pw.printf("<!DOCTYPE html>\n<html lang=\"%s\">\n<head>\n", escapeAttr(lang))
	pw.printf("  <meta charset=\"utf-8\">\n")
	pw.printf("  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	if page.Title != "" {
		pw.printf("  <title>%s</title>\n", escapeHTML(page.Title))
	}
	for _, meta := range page.Meta {
		pw.printf("  <meta name=\"%s\" content=\"%s\">\n", escapeAttr(meta.Name), escapeAttr(meta.Content))
	}
	for _, link := range page.Links {
		pw.printf("  <link rel=\"%s\" href=\"%s\"", escapeAttr(link.Rel), escapeAttr(link.Href))
		if link.As != "" {
			pw.printf(" as=\"%s\"", escapeAttr(link.As))
		}
		pw.printf(">\n")
	}
	pw.printf("</head>\n<body>\n")
	pw.printf("  <div id=\"%s\">%s</div>\n", escapeAttr(page.RootID), page.Body)
	if page.ContextScript != "" {
		pw.printf("  <script>%s</script>\n", page.ContextScript)
	}
	for _, script := range page.Scripts {
		pw.printf("  <script src=\"%s\"", escapeAttr(script.Src))
		switch {
		case script.Module:
			pw.printf(" type=\"module\"")
		case script.NoMod:
			pw.printf(" nomodule")
		}
		if script.Defer {
			pw.printf(" defer")
		}
		pw.printf("></script>\n")
	}
	pw.printf("</body>\n</html>\n")

	return pw.err
}

// pageWriter stops writing after the first error.
type pageWriter struct {
	w   io.Writer
	err error
}

func (pw *pageWriter) printf(format string, args ...any) {
	if pw.err != nil {
		return
	}
	_, pw.err = fmt.Fprintf(pw.w, format, args...)
}
