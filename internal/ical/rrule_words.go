package ical

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdayNames = map[string]string{
	"MO": "Monday",
	"TU": "Tuesday",
	"WE": "Wednesday",
	"TH": "Thursday",
	"FR": "Friday",
	"SA": "Saturday",
	"SU": "Sunday",
}

var freqUnits = map[string]string{
	"DAILY":   "day",
	"WEEKLY":  "week",
	"MONTHLY": "month",
	"YEARLY":  "year",
}

// RRuleToWords renders an RRULE as a short human-readable sentence, e.g.
// "Every 2 weeks on Monday,Tuesday" or "Every month on the 15th for 3
// times". Start supplies the time of day for daily rules. Unknown rules
// come back empty.
func RRuleToWords(rule string, start time.Time) string {
	parts := parseRuleParts(rule)
	freq := parts["FREQ"]
	unit, ok := freqUnits[freq]
	if !ok {
		return ""
	}

	interval := 1
	if v, err := strconv.Atoi(parts["INTERVAL"]); err == nil && v > 0 {
		interval = v
	}

	var b strings.Builder
	if interval == 1 {
		b.WriteString("Every " + unit)
	} else {
		fmt.Fprintf(&b, "Every %d %ss", interval, unit)
	}

	switch freq {
	case "DAILY":
		hour, minute := start.Hour(), start.Minute()
		if h, err := strconv.Atoi(parts["BYHOUR"]); err == nil {
			hour = h
			minute = 0
		}
		if m, err := strconv.Atoi(parts["BYMINUTE"]); err == nil {
			minute = m
		}
		fmt.Fprintf(&b, " at %02d:%02d", hour, minute)
	case "WEEKLY":
		if days := weekdayWords(parts["BYDAY"]); days != "" {
			b.WriteString(" on " + days)
		}
	case "MONTHLY":
		if day, err := strconv.Atoi(parts["BYMONTHDAY"]); err == nil {
			b.WriteString(" on the " + ordinal(day))
		}
	}

	if count, err := strconv.Atoi(parts["COUNT"]); err == nil && count > 0 {
		fmt.Fprintf(&b, " for %d times", count)
	} else if until, ok := parseWireTime(parts["UNTIL"]); ok {
		b.WriteString(" until " + until.Format("2006-01-02"))
	}

	return b.String()
}

func parseRuleParts(rule string) map[string]string {
	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	parts := make(map[string]string)
	for _, kv := range strings.Split(rule, ";") {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		parts[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return parts
}

func weekdayWords(byday string) string {
	if byday == "" {
		return ""
	}
	var names []string
	for _, code := range strings.Split(byday, ",") {
		if name, ok := weekdayNames[strings.ToUpper(strings.TrimSpace(code))]; ok {
			names = append(names, name)
		}
	}
	return strings.Join(names, ",")
}

// ordinal spells 1 as "1st", 2 as "2nd", with the 11th-13th exceptions.
func ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
