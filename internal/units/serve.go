package units

import (
	"context"

	"git.home.luguber.info/inful/sitebuilder/internal/engine"
)

// Server is the preview server backing the serve stage.
type Server interface {
	// Start begins serving root. Repeated calls are no-ops.
	Start(root string) error
}

// Serve starts srv on the pipeline destination when the pipeline executes.
func Serve(srv Server) engine.Unit {
	return engine.Func("serve", func(_ context.Context, _ engine.Files, p engine.Pipeline) error {
		return srv.Start(p.Destination())
	})
}
