package render

import (
	"strings"
	"unicode"
)

// Globals are the identifiers shared between the server output and the
// client bundle.
type Globals struct {
	// ID is the root element id.
	ID string
	// App is the name of the app instance on the client.
	App string
	// Context is the window property holding serialized state.
	Context string
	// PluginPrefix prefixes plugin injections.
	PluginPrefix string
	// ReadyCallback is called by the client once mounted.
	ReadyCallback string
	// LoadedCallback is called by the client once components are loaded.
	LoadedCallback string
}

// DetermineGlobals derives globals from name. Keys of overrides replace
// individual values: id, app, context, pluginPrefix, readyCallback,
// loadedCallback.
func DetermineGlobals(name string, overrides map[string]string) Globals {
	if name == "" {
		name = "vserve"
	}
	title := capitalize(name)
	g := Globals{
		ID:             "__" + name,
		App:            "$" + name,
		Context:        "__" + strings.ToUpper(name) + "__",
		PluginPrefix:   name,
		ReadyCallback:  "on" + title + "Ready",
		LoadedCallback: "_on" + title + "Loaded",
	}
	for key, value := range overrides {
		if value == "" {
			continue
		}
		switch key {
		case "id":
			g.ID = value
		case "app":
			g.App = value
		case "context":
			g.Context = value
		case "pluginPrefix":
			g.PluginPrefix = value
		case "readyCallback":
			g.ReadyCallback = value
		case "loadedCallback":
			g.LoadedCallback = value
		}
	}
	return g
}

func capitalize(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
