// Package extract selects in-window content from a loose object store
// and writes it to the extraction area with a resumable log.
package extract

import (
	"fmt"
	"time"
)

// TimeLayout is the format accepted for window bounds on the command line.
const TimeLayout = "2006-01-02 15:04"

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(TimeLayout), w.End.Format(TimeLayout))
}

// DefaultWindow returns [today 02:00, now) in now's location. Before
// 02:00 the start rolls back a day, so an overnight session is always
// covered.
func DefaultWindow(now time.Time) Window {
	start := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, now.Location())
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return Window{Start: start, End: now}
}

// ResolveWindow builds the extraction window from optional bound strings
// in TimeLayout, interpreted in now's location. Both empty yields
// DefaultWindow; a missing end means now; a missing start means
// 2000-01-01 00:00.
func ResolveWindow(startStr, endStr string, now time.Time) (Window, error) {
	if startStr == "" && endStr == "" {
		return DefaultWindow(now), nil
	}

	w := Window{
		Start: time.Date(2000, 1, 1, 0, 0, 0, 0, now.Location()),
		End:   now,
	}
	if startStr != "" {
		t, err := time.ParseInLocation(TimeLayout, startStr, now.Location())
		if err != nil {
			return Window{}, fmt.Errorf("parse window start %q: %w", startStr, err)
		}
		w.Start = t
	}
	if endStr != "" {
		t, err := time.ParseInLocation(TimeLayout, endStr, now.Location())
		if err != nil {
			return Window{}, fmt.Errorf("parse window end %q: %w", endStr, err)
		}
		w.End = t
	}
	if !w.Start.Before(w.End) {
		return Window{}, fmt.Errorf("window start %s is not before end %s",
			w.Start.Format(TimeLayout), w.End.Format(TimeLayout))
	}
	return w, nil
}
