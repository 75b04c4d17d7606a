package render

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	vserrors "github.com/vango-dev/vserve/internal/errors"
)

// WindowOptions configures how GetWindow fetches the page.
type WindowOptions struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client

	// Header is sent with the request.
	Header http.Header
}

// WindowConfig carries the server side settings GetWindow checks against.
type WindowConfig struct {
	LoadedCallback string
	SSR            bool
	Globals        Globals
}

// Window is a fetched and parsed page. Scripts are not executed.
type Window struct {
	URL        string
	StatusCode int
	Header     http.Header
	Document   *goquery.Document

	// LoadedCallback is the callback the client bundle calls once loaded.
	LoadedCallback string
}

// Root returns the application root element.
func (w *Window) Root(g Globals) *goquery.Selection {
	return w.Document.Find("#" + g.ID)
}

// GetWindow fetches url and parses the returned document. It fails when
// the page does not contain the app: the context script when rendering
// server side, the root element otherwise.
func GetWindow(ctx context.Context, url string, opts WindowOptions, cfg WindowConfig) (*Window, error) {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	if !appExists(doc, cfg) {
		body, _ := doc.Find("body").Html()
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, vserrors.New(vserrors.CodeWindowUnavailable).
			WithDetailf("%s answered %d without the app root; body: %s", url, resp.StatusCode, body)
	}

	return &Window{
		URL:            url,
		StatusCode:     resp.StatusCode,
		Header:         resp.Header,
		Document:       doc,
		LoadedCallback: cfg.LoadedCallback,
	}, nil
}

func appExists(doc *goquery.Document, cfg WindowConfig) bool {
	if !cfg.SSR {
		return doc.Find("#"+cfg.Globals.ID).Length() > 0
	}
	marker := "window." + cfg.Globals.Context
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = strings.Contains(s.Text(), marker)
		return !found
	})
	return found
}
