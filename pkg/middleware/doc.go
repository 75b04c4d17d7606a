// Package middleware provides the middleware the server mounts on its
// dispatcher, in pipeline order:
//
//   - Compression (gzip/zstd through klauspost/compress)
//   - Timing (Server-Timing header, Prometheus metrics, OpenTelemetry span)
//   - Static (files from a directory or any fs.FS, falls through on miss)
//   - Modern (marks requests from browsers that support ES modules)
//   - OpenInEditor (development only)
//   - Placeholder (404 placeholders for missing assets)
//   - Render (renders the route through the renderer)
//   - ErrorPage (turns errors into HTML or JSON responses)
//
// Every constructor returns a dispatch.Middleware:
//
//	d := dispatch.New()
//	d.Use("/", middleware.Static(os.DirFS("static"), opts.Render.Static))
//	d.Use("/", middleware.Render(middleware.RenderOptions{Render: s.RenderRoute, Options: opts}))
//	d.Use("/", middleware.ErrorPage(middleware.ErrorOptions{Resources: res}))
package middleware
