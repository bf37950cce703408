// Package recurrence materializes instances of recurring event templates
// on demand, so calendar windows always see concrete rows without any
// background precomputation keeping the whole future expanded.
package recurrence

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/hearthlabs/hearth/internal/lock"
	"github.com/hearthlabs/hearth/internal/metrics"
	"github.com/hearthlabs/hearth/internal/store"
)

// maxOccurrences bounds how many forward occurrences a single call
// enumerates per template.
const maxOccurrences = 30

// anchorAge is how old a template start must be before expansion anchors
// on the latest materialized sibling instead of the template itself.
const anchorAge = time.Hour * 24 * 30

const wireTimeLayout = "20060102T150405"

// Expander fills in missing instances of recurring templates for a
// requested window, serialized per user through the locker.
type Expander struct {
	events store.EventRepository
	locker lock.Locker
	now    func() time.Time
}

func NewExpander(events store.EventRepository, locker lock.Locker) *Expander {
	return &Expander{events: events, locker: locker, now: time.Now}
}

// EnsureWindow materializes any missing instances whose start falls at or
// before winEnd, then returns every event of the user overlapping the
// window in start-date order, inclusive of an event starting exactly at
// winEnd and exclusive of one ending exactly at winStart. Windows ending
// strictly in the past skip materialization entirely. calendarIDs narrows
// the returned set; an empty slice means all calendars.
func (x *Expander) EnsureWindow(ctx context.Context, userID int64, calendarIDs []int64, winStart, winEnd time.Time) ([]store.Event, error) {
	if winEnd.Before(x.now()) {
		return x.events.ListOverlapping(ctx, userID, calendarIDs, winStart, winEnd)
	}

	key := lock.EventsKey(userID)
	waitStart := time.Now()
	if err := x.locker.Acquire(ctx, key); err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	metrics.ObserveLockWait(waitStart)
	defer x.locker.Release(key)

	templates, err := x.events.ListTemplates(ctx, userID, winEnd)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	for i := range templates {
		// A broken rule on one template must not starve the others.
		if err := x.expandTemplate(ctx, &templates[i], winEnd); err != nil {
			log.Printf("[ERROR] expand template %d for user %d: %v", templates[i].ID, userID, err)
		}
	}

	return x.events.ListOverlapping(ctx, userID, calendarIDs, winStart, winEnd)
}

func (x *Expander) expandTemplate(ctx context.Context, tmpl *store.Event, winEnd time.Time) error {
	if tmpl.Meta.RecurringRRule == "" {
		return nil
	}

	anchorStart := tmpl.StartDate.UTC()
	anchorEnd := tmpl.EndDate.UTC()

	// Old templates anchor on the freshest materialized sibling so the
	// rule never has to be replayed from the original start.
	if x.now().Sub(tmpl.StartDate) > anchorAge {
		latest, err := x.events.LatestInstance(ctx, tmpl.ID, winEnd)
		if err != nil {
			return fmt.Errorf("latest instance: %w", err)
		}
		if latest != nil {
			anchorStart = latest.StartDate.UTC()
			anchorEnd = latest.EndDate.UTC()
		}
	}

	duration := anchorEnd.Sub(anchorStart)
	if duration <= 0 {
		duration = time.Hour
	}

	set, err := rrule.StrToRRuleSet(fmt.Sprintf("DTSTART:%sZ\n%s",
		anchorStart.Format(wireTimeLayout), ruleLine(tmpl.Meta.RecurringRRule)))
	if err != nil {
		return fmt.Errorf("parse rrule %q: %w", tmpl.Meta.RecurringRRule, err)
	}

	maxSeq, err := x.events.MaxSequence(ctx, tmpl.ID)
	if err != nil {
		return fmt.Errorf("max sequence: %w", err)
	}

	next := set.Iterator()
	for i := 0; i < maxOccurrences; i++ {
		occurrence, ok := next()
		if !ok {
			break
		}
		if occurrence.After(winEnd) {
			break
		}
		// Generation can drift the hour across timezone rules; pin it to
		// the anchor's hour.
		start := time.Date(occurrence.Year(), occurrence.Month(), occurrence.Day(),
			anchorStart.Hour(), occurrence.Minute(), occurrence.Second(), 0, time.UTC)

		exists, err := x.events.ExistsAt(ctx, tmpl.ID, start)
		if err != nil {
			return fmt.Errorf("check existing at %s: %w", start, err)
		}
		if exists {
			continue
		}

		maxSeq++
		instance := store.Event{
			UserID:     tmpl.UserID,
			CalendarID: tmpl.CalendarID,
			UID:        uuid.NewString(),
			Title:      tmpl.Title,
			StartDate:  start,
			EndDate:    start.Add(duration),
			AllDay:     tmpl.AllDay,
			Status:     tmpl.Status,
			Meta:       tmpl.Meta,
		}
		instance.Meta.RecurringID = tmpl.ID
		instance.Meta.RecurringSequence = maxSeq
		instance.Meta.RecurringRRule = ""

		if _, err := x.events.Create(ctx, instance); err != nil {
			return fmt.Errorf("create instance at %s: %w", start, err)
		}
		metrics.CountExpandedInstance()
	}
	return nil
}

func ruleLine(rule string) string {
	if strings.HasPrefix(strings.ToUpper(rule), "RRULE:") {
		return rule
	}
	return "RRULE:" + rule
}
