// Package api serves the JSON endpoints used by the web client.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlabs/hearth/internal/auth"
	httperrors "github.com/hearthlabs/hearth/internal/http/errors"
	"github.com/hearthlabs/hearth/internal/ical"
	"github.com/hearthlabs/hearth/internal/recurrence"
	"github.com/hearthlabs/hearth/internal/store"
)

// Handler answers calendar queries for authenticated browser sessions.
type Handler struct {
	store    *store.Store
	expander *recurrence.Expander
}

func NewHandler(st *store.Store, expander *recurrence.Expander) *Handler {
	return &Handler{store: st, expander: expander}
}

type eventJSON struct {
	ID             int64  `json:"id"`
	CalendarID     int64  `json:"calendarId"`
	UID            string `json:"uid"`
	Title          string `json:"title"`
	Start          string `json:"start"`
	End            string `json:"end"`
	AllDay         bool   `json:"allDay"`
	Status         string `json:"status"`
	Recurring      bool   `json:"recurring"`
	RecurrenceText string `json:"recurrenceText,omitempty"`
}

// ListEvents returns the user's events for [start, end), materializing
// recurring instances inside the window first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	calID, err := strconv.ParseInt(chi.URLParam(r, "calendarID"), 10, 64)
	if err != nil || calID <= 0 {
		httperrors.BadRequestError(w, "invalid calendar id")
		return
	}
	cal, err := h.store.Calendars.GetByID(r.Context(), calID)
	if err != nil || cal.UserID != user.ID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	winStart, err := parseWindowTime(r.URL.Query().Get("start"))
	if err != nil {
		httperrors.BadRequestError(w, "invalid start")
		return
	}
	winEnd, err := parseWindowTime(r.URL.Query().Get("end"))
	if err != nil || !winEnd.After(winStart) {
		httperrors.BadRequestError(w, "invalid end")
		return
	}

	events, err := h.expander.EnsureWindow(r.Context(), user.ID, []int64{calID}, winStart, winEnd)
	if err != nil {
		httperrors.InternalError(w, r, err)
		return
	}

	out := make([]eventJSON, 0, len(events))
	for _, ev := range events {
		if ev.CalendarID != calID {
			continue
		}
		item := eventJSON{
			ID:         ev.ID,
			CalendarID: ev.CalendarID,
			UID:        ev.UID,
			Title:      ev.Title,
			Start:      ev.StartDate.UTC().Format(time.RFC3339),
			End:        ev.EndDate.UTC().Format(time.RFC3339),
			AllDay:     ev.AllDay,
			Status:     string(ev.Status),
			Recurring:  ev.Meta.IsRecurring,
		}
		if rule := ev.Meta.RecurringRRule; rule != "" {
			item.RecurrenceText = ical.RRuleToWords(rule, ev.StartDate)
		}
		out = append(out, item)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		httperrors.LogError(r, err)
	}
}

func parseWindowTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}
