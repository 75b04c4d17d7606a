package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// Codes used across the server packages.
const (
	CodeNotReady          = "E200"
	CodeClosed            = "E201"
	CodeRendererFailed    = "E202"
	CodeModuleNotFound    = "E210"
	CodeModuleInvalid     = "E211"
	CodeModuleFactory     = "E212"
	CodeAddressInUse      = "E220"
	CodeListenFailed      = "E221"
	CodeTLSInvalid        = "E222"
	CodeSocketInvalid     = "E223"
	CodeConfigNotFound    = "E240"
	CodeConfigInvalid     = "E241"
	CodeConfigMiddleware  = "E242"
	CodeWindowUnavailable = "E250"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Lifecycle Errors (E200-E209)
	// ============================================

	CodeNotReady: {
		Category: CategoryRuntime,
		Message:  "Server is not ready",
		Detail:   "The renderer has not been created yet. Call Ready before rendering routes or loading resources.",
		DocURL:   "https://vserve.dev/docs/errors/E200",
	},
	CodeClosed: {
		Category: CategoryRuntime,
		Message:  "Server is closed",
		Detail:   "The server has been closed and cannot be used to listen or render again.",
		DocURL:   "https://vserve.dev/docs/errors/E201",
	},
	CodeRendererFailed: {
		Category: CategoryRender,
		Message:  "Renderer failed to start",
		Detail:   "The renderer returned an error while loading its resources.",
		DocURL:   "https://vserve.dev/docs/errors/E202",
	},

	// ============================================
	// Module Errors (E210-E219)
	// ============================================

	CodeModuleNotFound: {
		Category: CategoryModule,
		Message:  "Middleware module not found",
		Detail:   "No module is registered under this name.",
		DocURL:   "https://vserve.dev/docs/errors/E210",
	},
	CodeModuleInvalid: {
		Category: CategoryModule,
		Message:  "Module does not export middleware",
		Detail:   "A middleware module must export a middleware, a middleware object or a factory.",
		DocURL:   "https://vserve.dev/docs/errors/E211",
	},
	CodeModuleFactory: {
		Category: CategoryModule,
		Message:  "Middleware factory failed",
		Detail:   "The module factory returned an error while building the middleware.",
		DocURL:   "https://vserve.dev/docs/errors/E212",
	},

	// ============================================
	// Listener Errors (E220-E239)
	// ============================================

	CodeAddressInUse: {
		Category: CategoryListen,
		Message:  "Address already in use",
		Detail:   "Another process is already listening on this address.",
		DocURL:   "https://vserve.dev/docs/errors/E220",
	},
	CodeListenFailed: {
		Category: CategoryListen,
		Message:  "Failed to listen",
		Detail:   "The listener could not bind to the requested address.",
		DocURL:   "https://vserve.dev/docs/errors/E221",
	},
	CodeTLSInvalid: {
		Category: CategoryListen,
		Message:  "Invalid HTTPS configuration",
		Detail:   "The certificate or key could not be loaded.",
		DocURL:   "https://vserve.dev/docs/errors/E222",
	},
	CodeSocketInvalid: {
		Category: CategoryListen,
		Message:  "Invalid unix socket",
		Detail:   "The socket path exists and is not a socket, or could not be removed.",
		DocURL:   "https://vserve.dev/docs/errors/E223",
	},

	// ============================================
	// Config Errors (E240-E249)
	// ============================================

	CodeConfigNotFound: {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "The configuration file does not exist.",
		DocURL:   "https://vserve.dev/docs/errors/E240",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The configuration file could not be parsed.",
		DocURL:   "https://vserve.dev/docs/errors/E241",
	},
	CodeConfigMiddleware: {
		Category: CategoryConfig,
		Message:  "Invalid serverMiddleware entry",
		Detail:   "Each entry must be a module name or an object with a module and an optional path.",
		DocURL:   "https://vserve.dev/docs/errors/E242",
	},

	// ============================================
	// Window Errors (E250-E259)
	// ============================================

	CodeWindowUnavailable: {
		Category: CategoryRender,
		Message:  "Could not load the app",
		Detail:   "The rendered page does not contain the application root.",
		DocURL:   "https://vserve.dev/docs/errors/E250",
	},
}
