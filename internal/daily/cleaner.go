package daily

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/lox/meteodaily/internal/log"
)

// ScheduleCacheCleanup registers a job on sched that removes stale cache
// entries. spec uses the standard cron syntax or descriptors like "@hourly".
func (c *Client) ScheduleCacheCleanup(sched *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := sched.AddFunc(spec, func() {
		if _, err := c.CleanCache(); err != nil {
			log.Warnw("daily: scheduled cache cleanup failed", "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule cache cleanup %q: %w", spec, err)
	}
	return id, nil
}
