package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts 6-field (second minute hour dom month dow) cron
// patterns, plus the predefined "@every"/"@daily" descriptors.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// PayloadFactory produces a fresh payload each time a repeatable job
// fires — the scheduler uses it to stamp the current time or a freshly
// looked-up trigger state into the job.
type PayloadFactory func() (interface{}, error)

var repeatableMu sync.Mutex

// UpsertRepeatable registers (or replaces) a cron-driven job source keyed
// by key. On every cron fire, a fresh job named jobName is enqueued with
// the payload payloadFactory produces at fire time.
//
// A non-nil timezone other than UTC is applied to this registration alone
// by prefixing cronPattern with "CRON_TZ=<zone>"; a nil timezone leaves it
// in the queue cron's own location (UTC).
func (q *Queue) UpsertRepeatable(key, jobName, cronPattern string, timezone *time.Location, payloadFactory PayloadFactory) error {
	if timezone != nil && timezone != time.UTC {
		cronPattern = "CRON_TZ=" + timezone.String() + " " + cronPattern
	}
	schedule, err := cronParser.Parse(cronPattern)
	if err != nil {
		return fmt.Errorf("invalid cron pattern %q: %w", cronPattern, err)
	}

	repeatableMu.Lock()
	defer repeatableMu.Unlock()

	if entryID, ok := q.entries[key]; ok {
		q.cron.Remove(entryID)
		delete(q.entries, key)
	}

	job := cron.FuncJob(func() {
		payload, err := payloadFactory()
		if err != nil {
			q.log.Error("repeatable job payload factory failed", "key", key, "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := q.Enqueue(ctx, jobName, payload, EnqueueOptions{}); err != nil {
			q.log.Error("repeatable job enqueue failed", "key", key, "error", err)
		}
	})

	entryID := q.cron.Schedule(schedule, job)
	q.entries[key] = entryID
	return nil
}

// RemoveRepeatable unregisters key's cron entry, if any. The underlying
// trigger record (if this key corresponds to one) is left untouched; only
// the live cron registration is removed, so a paused trigger can be
// resumed later.
func (q *Queue) RemoveRepeatable(key string) {
	repeatableMu.Lock()
	defer repeatableMu.Unlock()

	if entryID, ok := q.entries[key]; ok {
		q.cron.Remove(entryID)
		delete(q.entries, key)
	}
}

// HasRepeatable reports whether key currently has a live cron registration.
func (q *Queue) HasRepeatable(key string) bool {
	repeatableMu.Lock()
	defer repeatableMu.Unlock()
	_, ok := q.entries[key]
	return ok
}

// NextFire returns the next time key's cron entry will fire.
func (q *Queue) NextFire(key string) (time.Time, bool) {
	repeatableMu.Lock()
	entryID, ok := q.entries[key]
	repeatableMu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return q.cron.Entry(entryID).Next, true
}

// StartCron starts the internal cron scheduler driving repeatable jobs.
func (q *Queue) StartCron() {
	q.cron.Start()
}

// StopCron stops the internal cron scheduler and waits for any running
// job funcs to finish.
func (q *Queue) StopCron(ctx context.Context) {
	stopCtx := q.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}
