package middleware

import (
	"bytes"
	"io"
	"io/fs"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/options"
)

// Static serves files from fsys for GET and HEAD requests. The request
// path is relative to the mount point. Anything that is not a servable
// file falls through to next.
func Static(fsys fs.FS, opts options.StaticOptions) dispatch.Middleware {
	s := &staticFiles{fsys: fsys, opts: opts}
	return dispatch.MiddlewareFunc(s.serve)
}

type staticFiles struct {
	fsys fs.FS
	opts options.StaticOptions
}

func (s *staticFiles) serve(w http.ResponseWriter, r *http.Request, next dispatch.Next) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		next(w, r, nil)
		return
	}

	rel, ok := staticRelPath(r.URL.Path, s.opts.Index)
	if !ok {
		next(w, r, nil)
		return
	}

	f, err := s.fsys.Open(rel)
	if err != nil {
		next(w, r, nil)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		next(w, r, nil)
		return
	}

	content, ok := f.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(f)
		if err != nil {
			next(w, r, err)
			return
		}
		content = bytes.NewReader(data)
	}

	s.applyCacheHeaders(w, rel)
	for key, value := range s.opts.Headers {
		w.Header().Set(key, value)
	}

	http.ServeContent(w, r, rel, info.ModTime(), content)
}

// staticRelPath returns a sanitized fs.FS path for urlPath. Directory
// requests map to index. Traversal and absolute-path tricks are rejected
// so serving cannot escape the root.
func staticRelPath(urlPath, index string) (string, bool) {
	rel := strings.TrimPrefix(urlPath, "/")
	if rel == "" || strings.HasSuffix(rel, "/") {
		if index == "" {
			return "", false
		}
		rel += index
	}

	// Reject NUL early (can appear via %00).
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}

	// Reject platform-dependent separators.
	if strings.Contains(rel, "\\") {
		return "", false
	}

	// A leading "/" after trimming indicates an absolute-path attempt
	// (e.g. "//etc/passwd").
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	// Reject dot-segments before cleaning so traversal attempts are not
	// cleaned into valid paths.
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if !fs.ValidPath(clean) || clean == "." {
		return "", false
	}

	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}

	return clean, true
}

func (s *staticFiles) applyCacheHeaders(w http.ResponseWriter, filePath string) {
	switch s.opts.CacheControl {
	case options.CacheControlNone:
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")

	case options.CacheControlProduction:
		if isFingerprinted(filePath) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			return
		}
		maxAge := 3600
		if s.opts.MaxAge > 0 {
			maxAge = int(s.opts.MaxAge.Seconds())
		}
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge)+", must-revalidate")
	}
}

// isFingerprinted reports whether the file name carries a content hash,
// e.g. "app.a1b2c3d4.css": 8 or more hex characters before the extension.
func isFingerprinted(filePath string) bool {
	parts := strings.Split(path.Base(filePath), ".")
	if len(parts) < 3 {
		return false
	}

	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
