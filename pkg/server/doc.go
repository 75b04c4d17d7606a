// Package server is the runtime HTTP server of a vserve application.
//
// It owns the renderer lifecycle, assembles the middleware pipeline on a
// dispatcher, and serves that pipeline on any number of listeners.
//
// # Lifecycle
//
//   - Ready builds the renderer, waits for it and assembles the pipeline.
//   - Listen binds one more endpoint. It may be called many times.
//   - Close shuts down every listener and the renderer. It is idempotent.
//
// # Pipeline
//
// SetupMiddleware mounts, in order:
//
//  1. the compressor
//  2. request timing
//  3. the static directory at the router base
//  4. build output at the public path
//  5. modern browser detection
//  6. the development bridge and open-in-editor (development only)
//  7. user middleware (Options.ServerMiddleware)
//  8. fallback placeholders
//  9. the render middleware
//  10. the error page
//
// # Hooks
//
// Hooks are typed observer lists. render:setupMiddleware receives the
// dispatcher before anything is mounted, render:errorMiddleware right
// before the error page, so extensions can splice in middleware.
package server
