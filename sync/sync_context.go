package sync

import "go.uber.org/zap"

// SyncContext holds shared configuration and logging for the sync
// components. It is immutable after construction and is embedded by the
// adapters and the Reconciler so they see the same settings.
type SyncContext struct {
	Config Config
	Logger *zap.SugaredLogger

	// RecordRequests enables recording of outbound API traffic for
	// building replay fixtures.
	RecordRequests bool
}

func (c *SyncContext) log() *zap.SugaredLogger {
	if c.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return c.Logger
}
