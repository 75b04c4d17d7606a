// Package config loads the vserve configuration.
//
// Configuration is read from vserve.yaml (or the file given with
// WithConfigFile), then from VSERVE_ environment variables, then from
// explicit overrides such as CLI flags. Later sources win.
//
// # Configuration File Structure
//
//	dev: false
//	srcDir: .
//	buildDir: .vserve
//	build:
//	  publicPath: /_vserve/
//	server:
//	  host: 0.0.0.0
//	  port: 3000
//	  timing:
//	    total: true
//	render:
//	  etag: true
//	  compressor:
//	    level: best
//	  fallback:
//	    dist: {}
//	serverMiddleware:
//	  - auth
//	  - module: api
//	    path: /api
//	log:
//	  level: info
//	  format: json
//
// Environment variables map to keys by dropping the prefix, lowercasing
// and replacing underscores with dots: VSERVE_SERVER_PORT sets
// server.port. Keys match case-insensitively, so VSERVE_BUILD_PUBLICPATH
// sets build.publicPath.
package config
