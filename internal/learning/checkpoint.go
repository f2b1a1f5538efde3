package learning

import (
	"log/slog"
	"time"

	"github.com/flemzord/recall/internal/persist"
)

// state is the on-disk shape of the checkpoint file.
type state struct {
	LastProcessed *time.Time `json:"last_processed_timestamp"`
}

// loadCheckpoint reads the persisted cursor. A missing or unreadable file
// means no checkpoint, which makes the next cycle a cold start.
func loadCheckpoint(store persist.Store, logger *slog.Logger) *time.Time {
	var st state
	_, err := store.Load(&st)
	if err != nil {
		logger.Error("learning: failed to load checkpoint", "path", store.Path(), "error", err)
		return nil
	}
	return st.LastProcessed
}

func saveCheckpoint(store persist.Store, ts *time.Time, logger *slog.Logger) {
	if err := store.Save(state{LastProcessed: ts}); err != nil {
		logger.Error("learning: failed to save checkpoint", "path", store.Path(), "error", err)
	}
}
