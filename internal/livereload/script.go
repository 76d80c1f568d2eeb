package livereload

import (
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Paths served by the preview server.
const (
	EventsPath = "/livereload"
	ScriptPath = "/livereload.js"
)

// Script is the browser client. It reloads the page when the token changes
// from the first one it received.
const Script = `(() => {
  if (window.__SITEBUILDER_LR__) return;
  window.__SITEBUILDER_LR__ = true;
  function connect() {
    const es = new EventSource('` + EventsPath + `');
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (current === null) { current = p.token; return; }
        if (p.token && p.token !== current) { console.log('[sitebuilder] change detected, reloading'); location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { console.warn('[sitebuilder] livereload error - retrying'); es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`

// ScriptHandler serves Script.
func ScriptHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write([]byte(Script)); err != nil {
			slog.Error("failed to write livereload script", logfields.Error(err))
		}
	})
}
