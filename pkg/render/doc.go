// Package render defines the contract between the server and the page
// renderer, the state they share, and a reference single-page renderer.
//
// The server creates one ServerContext per instance and hands it to a
// Factory. The resulting Renderer loads its resources (templates,
// manifests) into the shared Resources bag, which the error and modern
// middleware read as well.
//
//	sc := render.NewServerContext(opts, render.NewResources(), logger)
//	r, _ := render.NewSPA(render.SPAOptions{Title: "app"})(sc)
//	_ = r.Ready(ctx)
//	res, _ := r.RenderRoute(ctx, "/", &render.RenderContext{})
//
// GetWindow fetches a rendered page and parses it for tests and tooling.
package render
