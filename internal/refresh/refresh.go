// Package refresh decides whether a source is due for a check.
package refresh

import (
	"time"

	"feedwatch/internal/model"
)

// Due reports whether a source with the given refresh rule should be checked
// at time now. last is the time of the source's previous successful check;
// a nil last means the source has never been checked and is always due.
// Rule parameter validity is enforced at configuration load.
func Due(now time.Time, last *time.Time, rule model.RefreshRule) bool {
	if last == nil {
		return true
	}
	switch rule.Kind {
	case model.RuleEvery:
		return now.Sub(*last) >= rule.Every
	case model.RuleDaily:
		return last.Before(lastDaily(now, rule.Hour, rule.Minute))
	case model.RuleWeekly:
		return last.Before(lastWeekly(now, rule.Weekday, rule.Hour, rule.Minute))
	}
	return false
}

// lastDaily returns the latest occurrence of hour:minute at or before now.
func lastDaily(now time.Time, hour, minute int) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if at.After(now) {
		at = at.AddDate(0, 0, -1)
	}
	return at
}

// lastWeekly returns the latest occurrence of hour:minute on the given
// weekday at or before now.
func lastWeekly(now time.Time, day time.Weekday, hour, minute int) time.Time {
	at := lastDaily(now, hour, minute)
	back := (int(at.Weekday()) - int(day) + 7) % 7
	return at.AddDate(0, 0, -back)
}
