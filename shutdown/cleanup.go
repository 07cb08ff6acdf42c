package shutdown

import (
	"context"
	"errors"
	"io"
	"net/http"

	"nanobanana/core"
	"nanobanana/logging"
)

// HTTPServer stops accepting connections and waits for active handlers
// until ctx ends.
//
//	manager.Register("http-server", 10, shutdown.HTTPServer(srv))
func HTTPServer(srv *http.Server) core.ShutdownFunc {
	return func(ctx context.Context) error {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Closer adapts an io.Closer such as the history database.
func Closer(c io.Closer) core.ShutdownFunc {
	return func(context.Context) error {
		return c.Close()
	}
}

// SyncLogger flushes buffered log entries. Sync errors on stdout/stderr are
// common on some platforms and are not reported.
func SyncLogger(logger *logging.Logger) core.ShutdownFunc {
	return func(context.Context) error {
		_ = logger.Sync()
		return nil
	}
}
