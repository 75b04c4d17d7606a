package dev

import (
	"net/http"
	"strconv"
	"strings"
)

// ClientServer serves the browser dev client. The modern variant is the
// same script loaded as an ES module.
type ClientServer struct {
	path   string
	script string
}

// NewClientServer serves the dev client on path, connecting to the reload
// websocket at wsPath.
func NewClientServer(path, wsPath string) *ClientServer {
	return &ClientServer{
		path:   path,
		script: strings.Replace(clientScript, "__WS_PATH__", strconv.Quote(wsPath), 1),
	}
}

// Path returns the script path.
func (c *ClientServer) Path() string { return c.path }

// ServeHTTP serves the classic script for the client path.
func (c *ClientServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.serve(w, r, c.script)
}

// Modern returns the handler used for requests from module browsers.
func (c *ClientServer) Modern() http.Handler {
	module := c.script + "export {};\n"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.serve(w, r, module)
	})
}

func (c *ClientServer) serve(w http.ResponseWriter, r *http.Request, body string) {
	if r.URL.Path != c.path {
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/javascript; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(body))
}

const clientScript = `(function() {
    'use strict';

    var wsPath = __WS_PATH__;
    var reconnectDelay = 1000;
    var maxReconnectDelay = 30000;
    var ws = null;

    function connect() {
        var protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
        ws = new WebSocket(protocol + '//' + location.host + wsPath);

        ws.onopen = function() {
            console.log('[vserve] Hot reload connected');
            reconnectDelay = 1000;
            clearErrorOverlay();
        };

        ws.onmessage = function(e) {
            var msg;
            try {
                msg = JSON.parse(e.data);
            } catch (err) {
                return;
            }

            switch (msg.type) {
                case 'reload':
                    location.reload();
                    break;
                case 'css':
                    reloadCSS();
                    break;
                case 'error':
                    console.error('[vserve] Build error:', msg.error);
                    showErrorOverlay(msg.error);
                    break;
                case 'clear':
                    clearErrorOverlay();
                    break;
            }
        };

        ws.onclose = function() {
            setTimeout(function() {
                reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
                connect();
            }, reconnectDelay);
        };

        ws.onerror = function() {
            ws.close();
        };
    }

    function reloadCSS() {
        document.querySelectorAll('link[rel="stylesheet"]').forEach(function(link) {
            var url = new URL(link.href);
            url.searchParams.set('_reload', Date.now());
            link.href = url.toString();
        });
    }

    function showErrorOverlay(error) {
        clearErrorOverlay();

        var overlay = document.createElement('div');
        overlay.id = 'vserve-error-overlay';
        overlay.style.cssText = 'position:fixed;top:0;left:0;right:0;bottom:0;background:rgba(0,0,0,0.9);color:#fff;font-family:monospace;font-size:14px;padding:20px;overflow:auto;z-index:999999;';

        var title = document.createElement('h2');
        title.style.cssText = 'color:#ff5555;margin:0 0 20px;';
        title.textContent = 'Build Error';

        var pre = document.createElement('pre');
        pre.style.cssText = 'white-space:pre-wrap;word-wrap:break-word;';
        pre.textContent = error;

        overlay.appendChild(title);
        overlay.appendChild(pre);
        document.body.appendChild(overlay);
    }

    function clearErrorOverlay() {
        var overlay = document.getElementById('vserve-error-overlay');
        if (overlay) {
            overlay.remove();
        }
    }

    if (document.readyState === 'loading') {
        document.addEventListener('DOMContentLoaded', connect);
    } else {
        connect();
    }
})();
`
