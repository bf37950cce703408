package recurrence

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hearthlabs/hearth/internal/store"
)

// activeWindow is how far back a user's last activity may lie for the
// background refresh to still pre-expand their calendar.
const activeWindow = 14 * 24 * time.Hour

// refreshHorizon is how far ahead of now the background refresh
// materializes instances.
const refreshHorizon = 31 * 24 * time.Hour

// Refresher pre-expands recurring events for recently active users on a
// cron schedule, so their first calendar load after a quiet period does
// not pay the whole materialization cost inline.
type Refresher struct {
	users    store.UserRepository
	expander *Expander
	cron     *cron.Cron
	spec     string
}

func NewRefresher(users store.UserRepository, expander *Expander, spec string) *Refresher {
	return &Refresher{
		users:    users,
		expander: expander,
		cron:     cron.New(),
		spec:     spec,
	}
}

// Start registers the job and launches the scheduler. The returned error
// only reflects an invalid cron spec.
func (r *Refresher) Start() error {
	if _, err := r.cron.AddFunc(r.spec, r.runOnce); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Refresher) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now()
	users, err := r.users.ListActiveSince(ctx, now.Add(-activeWindow))
	if err != nil {
		log.Printf("[ERROR] refresh: list active users: %v", err)
		return
	}
	for _, u := range users {
		if _, err := r.expander.EnsureWindow(ctx, u.ID, nil, now, now.Add(refreshHorizon)); err != nil {
			log.Printf("[ERROR] refresh: expand for user %d: %v", u.ID, err)
		}
	}
	log.Printf("[INFO] refresh: expanded recurring events for %d users", len(users))
}
