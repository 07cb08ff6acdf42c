package core

import "context"

// ShutdownFunc releases one resource during graceful shutdown. It must respect
// the deadline carried by ctx and be safe to call more than once.
type ShutdownFunc func(ctx context.Context) error
