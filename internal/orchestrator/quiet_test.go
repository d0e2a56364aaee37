package orchestrator

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
}

func TestQuietWindowWrapsMidnight(t *testing.T) {
	w, err := ParseQuietWindow("22:00-06:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cases := []struct {
		t    time.Time
		want bool
	}{
		{at(21, 59), false},
		{at(22, 0), true},
		{at(23, 30), true},
		{at(0, 0), true},
		{at(5, 59), true},
		{at(6, 0), false},
		{at(12, 0), false},
	}
	for _, tc := range cases {
		if got := w.Contains(tc.t); got != tc.want {
			t.Errorf("Contains(%s) = %v, want %v", tc.t.Format("15:04"), got, tc.want)
		}
	}
}

func TestQuietWindowSameDay(t *testing.T) {
	w, err := ParseQuietWindow("13:00-14:30")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !w.Contains(at(13, 45)) || w.Contains(at(14, 30)) || w.Contains(at(12, 59)) {
		t.Fatal("same-day window bounds wrong")
	}
}

func TestQuietWindowEmptyAndZero(t *testing.T) {
	w, err := ParseQuietWindow("08:00-08:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if w.Contains(at(8, 0)) {
		t.Fatal("equal endpoints must yield an empty window")
	}
	var zero QuietWindow
	if zero.Contains(at(8, 0)) {
		t.Fatal("zero value must contain nothing")
	}
}

func TestQuietWindowRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "22-06", "25:00-06:00", "22:00-06:61"} {
		if _, err := ParseQuietWindow(s); err == nil {
			t.Errorf("ParseQuietWindow(%q) accepted", s)
		}
	}
}
