package authcore

import (
	"context"
	"log"
	"time"
)

// RunSweeper periodically prunes dangling owner-index entries left behind
// when refresh records expire. The sweep is purely advisory: correctness
// never depends on it, since every lookup re-checks the record itself. The
// loop blocks until ctx is cancelled.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := e.refreshStore.Sweep(ctx)
			if err != nil {
				log.Printf("authcore: sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("authcore: sweep removed %d dangling entries", removed)
			}
		}
	}
}
