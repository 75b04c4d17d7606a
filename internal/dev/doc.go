// Package dev provides the development tooling attached to a server in
// dev mode.
//
// Attach wires three pieces into the server's dev bridge:
//
//   - ClientServer serves the browser dev client at
//     <publicPath>dev-client.js.
//   - ReloadServer accepts the dev client's websocket at <publicPath>hmr and
//     broadcasts reload, css and error messages.
//   - Watcher observes the static directory and the build output with
//     fsnotify. Build output changes reload the renderer resources, then
//     every browser is told to reload; stylesheet changes are swapped in
//     place.
//
// Attach subscribes to the server's close hook, so closing the server
// stops the watcher and disconnects browsers.
package dev
