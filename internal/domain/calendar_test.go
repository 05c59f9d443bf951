package domain

import (
	"testing"
	"time"
)

func TestMonth_DaysIn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		m    Month
		days int
	}{
		{Month{2024, time.January}, 31},
		{Month{2024, time.February}, 29},
		{Month{2023, time.February}, 28},
		{Month{2024, time.April}, 30},
		{Month{2024, time.December}, 31},
	}
	for _, tc := range tests {
		if got := tc.m.DaysIn(); got != tc.days {
			t.Fatalf("%s DaysIn() = %d, want %d", tc.m, got, tc.days)
		}
	}
}

func TestMonth_AddMonthsAcrossYears(t *testing.T) {
	t.Parallel()

	m := Month{2024, time.December}
	if got := m.AddMonths(1); got != (Month{2025, time.January}) {
		t.Fatalf("AddMonths(1) = %s", got)
	}
	if got := m.AddMonths(-12); got != (Month{2023, time.December}) {
		t.Fatalf("AddMonths(-12) = %s", got)
	}
	if got := (Month{2024, time.January}).AddMonths(-1); got != (Month{2023, time.December}) {
		t.Fatalf("AddMonths(-1) = %s", got)
	}
}

func TestMonth_Before(t *testing.T) {
	t.Parallel()

	a := Month{2023, time.December}
	b := Month{2024, time.January}
	if !a.Before(b) || b.Before(a) || a.Before(a) {
		t.Fatalf("unexpected ordering between %s and %s", a, b)
	}
}

func TestParseMonth(t *testing.T) {
	t.Parallel()

	m, err := ParseMonth("2024-01")
	if err != nil {
		t.Fatalf("ParseMonth: %v", err)
	}
	if m != (Month{2024, time.January}) || m.String() != "2024-01" {
		t.Fatalf("ParseMonth() = %+v", m)
	}
	if _, err := ParseMonth("January"); err == nil {
		t.Fatal("expected error for malformed month")
	}
}

func TestParseWeekStart(t *testing.T) {
	t.Parallel()

	if wd, err := ParseWeekStart("monday"); err != nil || wd != time.Monday {
		t.Fatalf("monday -> %v, %v", wd, err)
	}
	if wd, err := ParseWeekStart("Sunday"); err != nil || wd != time.Sunday {
		t.Fatalf("Sunday -> %v, %v", wd, err)
	}
	if _, err := ParseWeekStart("friday"); err == nil {
		t.Fatal("expected error for friday")
	}
}
