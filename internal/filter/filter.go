// Package filter implements the entry matching engine.
package filter

import (
	"fmt"
	"regexp"

	"feedwatch/internal/model"
)

// Pass checks whether an entry passes the given set of filters.
// With no filters every entry passes. With one or more filters the entry
// passes when at least one of them matches (OR logic). A filter whose target
// field is absent on the entry passes vacuously, so entries missing optional
// metadata are never dropped by a rule that cannot evaluate them.
func Pass(filters []model.Filter, e model.Entry) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if matches(f, e) {
			return true
		}
	}
	return false
}

func matches(f model.Filter, e model.Entry) bool {
	var text string
	switch f.Target {
	case model.TargetTitle:
		text = e.Title
	case model.TargetContent:
		text = e.Content
	}
	if text == "" {
		return true
	}
	return f.Pattern.MatchString(text) == f.Expected
}

// Compile builds a filter from its configured parts, validating the pattern.
func Compile(target model.FilterTarget, pattern string, expected bool) (model.Filter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return model.Filter{}, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
	}
	return model.Filter{Target: target, Pattern: re, Expected: expected}, nil
}
