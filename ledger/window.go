package ledger

import "time"

// =============================================================================
// WINDOW - Time boundary for fetching and aggregation
// =============================================================================

// Window is an inclusive time range [From, To]. Reconciliation is always
// computed for a window, never "all time".
type Window struct {
	From time.Time
	To   time.Time
}

// Day returns the window covering one calendar day in t's location.
func Day(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return Window{From: start, To: start.Add(24*time.Hour - time.Nanosecond)}
}

// Contains returns true if t falls within the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// Valid reports whether the window is well-formed.
func (w Window) Valid() bool {
	return !w.To.Before(w.From)
}

func (w Window) String() string {
	return "[" + w.From.Format(time.RFC3339) + ", " + w.To.Format(time.RFC3339) + "]"
}
