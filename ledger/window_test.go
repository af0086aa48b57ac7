package ledger_test

import (
	"testing"
	"time"

	"github.com/alibek517/posledger/ledger"
)

func TestWindow_ContainsIsInclusiveOnBothEnds(t *testing.T) {
	w := ledger.Window{
		From: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC),
	}

	if !w.Contains(w.From) {
		t.Error("From boundary must be included")
	}
	if !w.Contains(w.To) {
		t.Error("To boundary must be included")
	}
	if w.Contains(w.From.Add(-time.Nanosecond)) {
		t.Error("instant before From must be excluded")
	}
	if w.Contains(w.To.Add(time.Nanosecond)) {
		t.Error("instant after To must be excluded")
	}
}

func TestDay_CoversTheWholeCalendarDay(t *testing.T) {
	noon := time.Date(2025, time.June, 10, 12, 30, 0, 0, time.UTC)
	w := ledger.Day(noon)

	if !w.Contains(time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)) {
		t.Error("midnight must be included")
	}
	if !w.Contains(time.Date(2025, time.June, 10, 23, 59, 59, 999_999_999, time.UTC)) {
		t.Error("last nanosecond of the day must be included")
	}
	if w.Contains(time.Date(2025, time.June, 11, 0, 0, 0, 0, time.UTC)) {
		t.Error("next midnight must be excluded")
	}
}

func TestWindow_Valid(t *testing.T) {
	good := ledger.Window{From: time.Now(), To: time.Now().Add(time.Hour)}
	if !good.Valid() {
		t.Error("forward window must be valid")
	}
	bad := ledger.Window{From: time.Now(), To: time.Now().Add(-time.Hour)}
	if bad.Valid() {
		t.Error("inverted window must be invalid")
	}
}
