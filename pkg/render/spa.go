package render

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vango-dev/vserve/pkg/assets"
)

// Files read from the server build output.
const (
	ClientManifestFile = "client.manifest.json"
	ModernManifestFile = "modern.manifest.json"
	SPATemplateFile    = "index.spa.html"
	ErrorTemplateFile  = "error.html"
)

// SPAOptions configures the single-page renderer.
type SPAOptions struct {
	Title string
	Lang  string
	Meta  []MetaTag

	// DevScripts are extra scripts appended in development.
	DevScripts []string
}

// NewSPA returns a Factory for the single-page renderer. It serves the
// same shell for every route and leaves routing to the client bundle.
func NewSPA(opts SPAOptions) Factory {
	return func(sc *ServerContext) (Renderer, error) {
		return &SPARenderer{
			sc:     sc,
			opts:   opts,
			logger: sc.Logger.Named("spa"),
		}, nil
	}
}

// SPARenderer renders the application shell.
type SPARenderer struct {
	sc     *ServerContext
	opts   SPAOptions
	logger *zap.Logger

	mu       sync.RWMutex
	client   assets.Resolver
	modern   assets.Resolver
	entries  []string
	modEntry []string
	shell    string
}

// Ready loads the build output from disk.
func (s *SPARenderer) Ready(ctx context.Context) error {
	return s.LoadResources(ctx, nil)
}

// Context returns the server context.
func (s *SPARenderer) Context() *ServerContext {
	return s.sc
}

// LoadResources reads manifests and templates from fsys, or from
// BuildDir/dist/server when fsys is nil. Missing files fall back to
// built-in defaults; malformed ones are errors.
func (s *SPARenderer) LoadResources(ctx context.Context, fsys fs.FS) error {
	if fsys == nil {
		fsys = os.DirFS(filepath.Join(s.sc.Options.BuildDir, "dist", "server"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	res := s.sc.Resources
	publicPath := s.sc.Options.Build.PublicPath

	client, err := loadManifest(fsys, ClientManifestFile)
	if err != nil {
		return err
	}
	var clientResolver assets.Resolver
	if client == nil {
		if !s.sc.Options.Dev {
			s.logger.Warn("client manifest missing, serving unfingerprinted assets", zap.String("file", ClientManifestFile))
		}
		client = assets.NewManifest()
		clientResolver = assets.NewPassthroughResolver(publicPath)
	} else {
		clientResolver = assets.NewResolver(client, publicPath)
	}
	res.Set(ResourceClientManifest, client)

	modern, err := loadManifest(fsys, ModernManifestFile)
	if err != nil {
		return err
	}
	var modernResolver assets.Resolver
	if modern != nil {
		res.Set(ResourceModernManifest, modern)
		modernResolver = assets.NewResolver(modern, publicPath)
	} else {
		res.Delete(ResourceModernManifest)
	}

	shell, err := readOptional(fsys, SPATemplateFile)
	if err != nil {
		return err
	}
	if shell != "" {
		res.Set(ResourceSPATemplate, shell)
	} else {
		res.Delete(ResourceSPATemplate)
	}

	errPage, err := readOptional(fsys, ErrorTemplateFile)
	if err != nil {
		return err
	}
	if errPage != "" {
		res.Set(ResourceErrorTemplate, ParseErrorTemplate(errPage))
	} else {
		res.Set(ResourceErrorTemplate, ErrorTemplate(DefaultErrorTemplate))
	}

	s.mu.Lock()
	s.client = clientResolver
	s.modern = modernResolver
	s.entries = sortedKeys(client)
	s.modEntry = sortedKeys(modern)
	s.shell = shell
	s.mu.Unlock()

	s.logger.Debug("resources loaded",
		zap.Int("client_assets", client.Len()),
		zap.Bool("modern", modern != nil),
		zap.Bool("custom_shell", shell != ""),
	)
	return nil
}

// RenderRoute renders the shell for url.
func (s *SPARenderer) RenderRoute(ctx context.Context, url string, rc *RenderContext) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rc == nil {
		rc = &RenderContext{}
	}

	s.mu.RLock()
	client, modern, entries, modEntries, shell := s.client, s.modern, s.entries, s.modEntry, s.shell
	s.mu.RUnlock()
	if client == nil {
		return nil, errors.New("spa renderer: resources not loaded")
	}

	g := s.sc.Globals
	state := map[string]any{
		"spa":       true,
		"routePath": url,
		"config":    map[string]any{"publicPath": s.sc.Options.Build.PublicPath, "base": s.sc.Options.Router.Base},
	}
	if len(rc.State) > 0 {
		state["state"] = rc.State
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	ctxScript := "window." + g.Context + "=" + escapeScript(string(data)) + ";"

	page := PageData{
		Lang:          s.opts.Lang,
		Title:         s.opts.Title,
		Meta:          s.opts.Meta,
		RootID:        g.ID,
		ContextScript: ctxScript,
	}
	var preload []PreloadFile

	useModern := rc.Modern && modern != nil
	if useModern {
		for _, name := range modEntries {
			addAsset(&page, &preload, modern.Asset(name), name, true)
		}
	} else {
		for _, name := range entries {
			addAsset(&page, &preload, client.Asset(name), name, false)
		}
	}
	if s.sc.Options.Dev {
		for _, src := range s.opts.DevScripts {
			page.Scripts = append(page.Scripts, ScriptTag{Src: src, Defer: true})
		}
	}

	var b strings.Builder
	if err := RenderPage(&b, page); err != nil {
		return nil, err
	}
	html := b.String()
	if shell != "" {
		html = applyShell(shell, html)
	}

	sum := sha256.Sum256([]byte(ctxScript))
	return &Result{
		HTML:         html,
		PreloadFiles: preload,
		ScriptHashes: []string{"sha256-" + base64.StdEncoding.EncodeToString(sum[:])},
	}, nil
}

// Close drops loaded state. Shared resources are reset by the server.
func (s *SPARenderer) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client, s.modern = nil, nil
	s.entries, s.modEntry = nil, nil
	s.shell = ""
	return nil
}

func addAsset(page *PageData, preload *[]PreloadFile, src, name string, modern bool) {
	switch path.Ext(name) {
	case ".js", ".mjs":
		page.Scripts = append(page.Scripts, ScriptTag{Src: src, Defer: !modern, Module: modern})
		*preload = append(*preload, PreloadFile{File: src, As: "script", Modern: modern})
	case ".css":
		page.Links = append(page.Links, LinkTag{Rel: "stylesheet", Href: src})
		*preload = append(*preload, PreloadFile{File: src, As: "style"})
	}
}

// applyShell splices the rendered head and body into a custom template
// with {{ HEAD }} and {{ APP }} markers.
func applyShell(shell, html string) string {
	head := between(html, "<head>\n", "</head>")
	body := between(html, "<body>\n", "</body>")
	return strings.NewReplacer("{{ HEAD }}", head, "{{ APP }}", body).Replace(shell)
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	j := strings.LastIndex(s, end)
	if i < 0 || j < i {
		return ""
	}
	return s[i+len(start) : j]
}

func loadManifest(fsys fs.FS, name string) (*assets.Manifest, error) {
	m, err := assets.LoadFS(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return m, err
}

func readOptional(fsys fs.FS, name string) (string, error) {
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return string(data), err
}

func sortedKeys(m *assets.Manifest) []string {
	if m == nil {
		return nil
	}
	all := m.All()
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
