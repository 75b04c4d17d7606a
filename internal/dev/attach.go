package dev

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vango-dev/vserve/pkg/options"
	"github.com/vango-dev/vserve/pkg/server"
)

// Options configures Attach.
type Options struct {
	// Watch adds directories to the static directory and build output.
	Watch []string

	// Debounce overrides the watcher debounce.
	Debounce time.Duration

	// NoWatch disables the file watcher.
	NoWatch bool

	Logger *zap.Logger
}

// Session is the dev tooling attached to one server.
type Session struct {
	Reload  *ReloadServer
	Client  *ClientServer
	Watcher *Watcher

	srv       *server.Server
	serverDir string
	logger    *zap.Logger
}

// ClientPath returns where the dev client script is served, for
// render.SPAOptions.DevScripts.
func ClientPath(o *options.Options) string {
	return o.PublicPath() + "dev-client.js"
}

// ReloadPath returns the reload websocket path.
func ReloadPath(o *options.Options) string {
	return o.PublicPath() + "hmr"
}

// Attach hands the dev client and reload server to the server's dev
// bridge and starts watching for changes. The server must run in dev
// mode, or the bridge is never mounted.
func Attach(ctx context.Context, srv *server.Server, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("dev")
	o := srv.Options()

	reload := NewReloadServer(ReloadPath(o), logger.Named("reload"))
	client := NewClientServer(ClientPath(o), reload.Path())
	s := &Session{
		Reload:    reload,
		Client:    client,
		srv:       srv,
		serverDir: filepath.Join(o.BuildDir, "dist", "server"),
		logger:    logger,
	}

	err := srv.Hooks().DevMiddleware.Emit(ctx, server.DevMiddlewareEvent{
		Dev: &server.BuildMiddleware{Client: client, Modern: client.Modern()},
		Hot: &server.BuildMiddleware{Client: reload, Modern: reload},
	})
	if err != nil {
		return nil, err
	}

	if !opts.NoWatch {
		paths := append([]string{
			filepath.Join(o.SrcDir, o.Dir.Static),
			filepath.Join(o.BuildDir, "dist"),
		}, opts.Watch...)
		w, err := NewWatcher(WatcherConfig{
			Paths:    paths,
			Debounce: opts.Debounce,
			Logger:   logger.Named("watcher"),
		})
		if err != nil {
			return nil, err
		}
		w.OnChange(s.HandleChanges)
		if err := w.Start(ctx); err != nil {
			_ = w.Stop()
			return nil, err
		}
		s.Watcher = w
		logger.Info("watching for changes", zap.Strings("paths", paths))
	}

	srv.Hooks().Close.On(func(context.Context, struct{}) error {
		return s.Close()
	})
	return s, nil
}

// HandleChanges reacts to a batch of changes: build output reloads the
// renderer resources, stylesheets are swapped in place, and anything else
// reloads the page.
func (s *Session) HandleChanges(changes []Change) {
	if len(changes) == 0 {
		return
	}

	rebuilt := false
	cssOnly := true
	for _, c := range changes {
		s.logger.Debug("changed", zap.String("path", c.Path), zap.Stringer("type", c.Type))
		if isWithinDir(c.Path, s.serverDir) {
			rebuilt = true
		}
		if c.Type != ChangeCSS {
			cssOnly = false
		}
	}

	if rebuilt {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.srv.LoadResources(ctx, nil); err != nil {
			s.logger.Error("could not reload resources", zap.Error(err))
			s.Reload.NotifyError(err.Error())
			return
		}
		s.Reload.ClearError()
		s.Reload.NotifyReload()
		return
	}

	if cssOnly {
		s.Reload.NotifyCSS(changes[0].Path)
		return
	}
	s.Reload.NotifyReload()
}

// Close stops the watcher and disconnects browsers.
func (s *Session) Close() error {
	s.Reload.Close()
	if s.Watcher != nil {
		return s.Watcher.Stop()
	}
	return nil
}

func isWithinDir(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
