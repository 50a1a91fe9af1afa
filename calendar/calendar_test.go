package calendar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
)

func sydney(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	return loc
}

func TestCreateRoundTrip(t *testing.T) {
	loc := sydney(t)
	dir := t.TempDir()
	dept := time.Date(2025, 3, 3, 0, 0, 0, 0, loc)
	ret := time.Date(2025, 3, 7, 0, 0, 0, 0, loc)

	export, err := Create(dir, dept, ret, "AVV (Mon-Fri)", "SYD", loc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer export.Remove()

	if export.Name != "Trip_Mar03.ics" {
		t.Fatalf("name=%q, want Trip_Mar03.ics", export.Name)
	}
	if export.Path != filepath.Join(dir, "Trip_Mar03.ics") {
		t.Fatalf("path=%q", export.Path)
	}

	f, err := os.Open(export.Path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	cal, err := ics.ParseCalendar(f)
	if err != nil {
		t.Fatalf("parse calendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("events=%d, want 1", len(events))
	}

	start, err := events[0].GetStartAt()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	end, err := events[0].GetEndAt()
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	wantStart := time.Date(2025, 3, 3, 6, 0, 0, 0, loc)
	wantEnd := time.Date(2025, 3, 7, 20, 0, 0, 0, loc)
	if !start.Equal(wantStart) {
		t.Fatalf("start=%s, want %s", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Fatalf("end=%s, want %s", end, wantEnd)
	}

	summary := events[0].GetProperty(ics.ComponentPropertySummary)
	if summary == nil || summary.Value != "✈️ SYD Commute (AVV (Mon-Fri))" {
		t.Fatalf("summary=%v", summary)
	}
}

func TestFileName(t *testing.T) {
	cases := []struct {
		day  time.Time
		want string
	}{
		{time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), "Trip_Jan02.ics"},
		{time.Date(2025, 11, 18, 0, 0, 0, 0, time.UTC), "Trip_Nov18.ics"},
	}
	for _, tc := range cases {
		if got := FileName(tc.day); got != tc.want {
			t.Fatalf("FileName(%s)=%q, want %q", tc.day.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestCreateRejectsReturnBeforeDeparture(t *testing.T) {
	dept := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	ret := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	if _, err := Create(t.TempDir(), dept, ret, "MEL (Tue-Fri)", "SYD", time.UTC); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dept := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	export, err := Create(dir, dept, dept.AddDate(0, 0, 3), "MEL (Tue-Fri)", "SYD", time.UTC)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := export.Remove(); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if _, err := os.Stat(export.Path); !os.IsNotExist(err) {
		t.Fatalf("export still present: %v", err)
	}
	if err := export.Remove(); err != nil {
		t.Fatalf("second remove: %v", err)
	}

	var nilExport *Export
	if err := nilExport.Remove(); err != nil {
		t.Fatalf("nil remove: %v", err)
	}
}

func TestBuildSerializesEvent(t *testing.T) {
	dept := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	body := Build(dept, dept.AddDate(0, 0, 3), "AVV (Mon-Thu Night)", "SYD", time.UTC).Serialize()

	for _, want := range []string{"BEGIN:VCALENDAR", "BEGIN:VEVENT", "DTSTART:20250303T060000Z", "DTEND:20250306T200000Z", "END:VCALENDAR"} {
		if !strings.Contains(body, want) {
			t.Fatalf("serialized calendar missing %q:\n%s", want, body)
		}
	}
}
