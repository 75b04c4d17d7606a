package server

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/vango-dev/vserve/pkg/assets"
	"github.com/vango-dev/vserve/pkg/middleware"
	"github.com/vango-dev/vserve/pkg/modules"
	"github.com/vango-dev/vserve/pkg/options"
)

// editorPath is where the open-in-editor endpoint is mounted, below the
// router base.
const editorPath = "__open-in-editor"

// SetupMiddleware assembles the pipeline on the dispatcher. Ready calls
// it; calling it again mounts everything a second time.
func (s *Server) SetupMiddleware(ctx context.Context) error {
	app := s.app.Load()
	if app == nil {
		return ErrClosed
	}
	if err := s.hooks.SetupMiddleware.Emit(ctx, app); err != nil {
		return err
	}

	o := s.opts
	ro := o.Render

	if c := ro.Compressor; c != nil {
		mw := c.Handler
		if mw == nil {
			built, err := modules.Build(s.resolver, "compression", c.Options)
			if err != nil {
				s.logger.Error("could not build compressor", zap.Error(err))
				return err
			}
			mw = built
		}
		if err := s.UseMiddleware(options.Handler(mw)); err != nil {
			return err
		}
	}

	if t := o.Server.Timing; t != nil {
		cfg := middleware.TimingConfig{TimingOptions: *t}
		if t.Metrics && s.registry != nil {
			cfg.Metrics = []middleware.MetricsOption{middleware.WithRegistry(s.registry)}
		}
		if err := s.UseMiddleware(options.Handler(middleware.Timing(cfg))); err != nil {
			return err
		}
	}

	if err := s.UseMiddleware(options.ObjectDescriptor{
		Handler: middleware.Static(s.staticFS(), ro.Static),
		Prefix:  ro.Static.Prefix,
		Exact:   options.Bool(false),
	}); err != nil {
		return err
	}

	if err := s.UseMiddleware(options.ObjectDescriptor{
		Handler: middleware.Static(s.distFS(), ro.Dist.StaticOptions),
		Path:    o.PublicPath(),
	}); err != nil {
		return err
	}

	if err := s.UseMiddleware(options.Handler(middleware.Modern(s.sc))); err != nil {
		return err
	}

	if o.Dev {
		if err := s.UseMiddleware(options.Handler(s.devBridge())); err != nil {
			return err
		}
		if o.Debug && o.Editor != "" {
			if err := s.UseMiddleware(options.ObjectDescriptor{
				Path: editorPath,
				Handler: middleware.OpenInEditor(middleware.EditorOptions{
					Command: o.Editor,
					SrcDir:  o.SrcDir,
					Logger:  s.logger.Named("editor"),
				}),
			}); err != nil {
				return err
			}
		}
	}

	for _, d := range o.ServerMiddleware {
		if err := s.UseMiddleware(d); err != nil {
			return err
		}
	}

	if f := ro.Fallback.Dist; f != nil {
		if err := s.UseMiddleware(options.ObjectDescriptor{
			Handler: middleware.Placeholder(*f),
			Path:    o.PublicPath(),
		}); err != nil {
			return err
		}
	}
	if f := ro.Fallback.Static; f != nil {
		if err := s.UseMiddleware(options.ObjectDescriptor{
			Handler: middleware.Placeholder(*f),
			Path:    "/",
		}); err != nil {
			return err
		}
	}

	if err := s.UseMiddleware(options.Handler(middleware.Render(middleware.RenderOptions{
		Render:  s.RenderRoute,
		Options: o,
		Hooks:   s.hooks.render(),
		Logger:  s.logger.Named("render"),
	}))); err != nil {
		return err
	}

	if err := s.hooks.ErrorMiddleware.Emit(ctx, app); err != nil {
		return err
	}
	return s.UseMiddleware(options.Handler(middleware.ErrorPage(middleware.ErrorOptions{
		Resources: s.resources,
		Debug:     o.Debug,
		Logger:    s.logger.Named("error"),
	})))
}

func (s *Server) staticFS() fs.FS {
	if s.cfg.StaticFS != nil {
		return s.cfg.StaticFS
	}
	return os.DirFS(filepath.Join(s.opts.SrcDir, s.opts.Dir.Static))
}

func (s *Server) distFS() fs.FS {
	if s.cfg.DistFS != nil {
		return s.cfg.DistFS
	}
	if b := s.opts.Render.Dist.S3; b != nil {
		client := s.cfg.Objects
		if client == nil {
			client = assets.NewS3Client(assets.S3Config{Region: b.Region, Endpoint: b.Endpoint})
		}
		return assets.NewS3FS(client, b.Bucket, b.KeyPrefix)
	}
	return os.DirFS(filepath.Join(s.opts.BuildDir, "dist", "client"))
}
