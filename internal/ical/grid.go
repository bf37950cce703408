package ical

import "time"

// DayCell is one cell of a month grid.
type DayCell struct {
	Date    time.Time
	InMonth bool
	IsToday bool
}

// HourCell is one hour slot of a day column.
type HourCell struct {
	Hour  int
	IsNow bool
}

// DayColumn is one day of a week grid with its 24 hour slots.
type DayColumn struct {
	Date    time.Time
	IsToday bool
	Hours   []HourCell
}

// startOfWeek returns the Monday of the week containing t, at midnight in
// t's location.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}

// WeeksForMonth builds a Monday-first month grid covering every week that
// touches date's month. Cells outside the month carry InMonth=false. now
// marks today's cell.
func WeeksForMonth(date, now time.Time) [][]DayCell {
	first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
	last := first.AddDate(0, 1, -1)
	cursor := startOfWeek(first)
	end := startOfWeek(last).AddDate(0, 0, 7)

	var weeks [][]DayCell
	for cursor.Before(end) {
		week := make([]DayCell, 0, 7)
		for i := 0; i < 7; i++ {
			day := cursor.AddDate(0, 0, i)
			week = append(week, DayCell{
				Date:    day,
				InMonth: day.Month() == date.Month(),
				IsToday: sameDay(day, now),
			})
		}
		weeks = append(weeks, week)
		cursor = cursor.AddDate(0, 0, 7)
	}
	return weeks
}

// DaysForWeek builds the seven Monday-first day columns for the week
// containing date. The column matching now's day marks now's hour.
func DaysForWeek(date, now time.Time) []DayColumn {
	monday := startOfWeek(date)
	days := make([]DayColumn, 0, 7)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		today := sameDay(day, now)
		hours := make([]HourCell, 24)
		for h := 0; h < 24; h++ {
			hours[h] = HourCell{Hour: h, IsNow: today && now.Hour() == h}
		}
		days = append(days, DayColumn{Date: day, IsToday: today, Hours: hours})
	}
	return days
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
