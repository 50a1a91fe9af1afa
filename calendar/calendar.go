// Package calendar writes single-event iCalendar files for commute trips.
package calendar

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

const (
	startHour = 6
	endHour   = 20
	productID = "-//commute-matrix//EN"
)

// Export is a calendar file on disk. Callers own it and must Remove it.
type Export struct {
	Path string
	Name string
}

// Remove deletes the file. Removing a file that is already gone is not
// an error.
func (e *Export) Remove() error {
	if e == nil || e.Path == "" {
		return nil
	}
	if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove calendar export: %w", err)
	}
	return nil
}

// FileName returns the export name for a trip departing on dept, e.g.
// "Trip_Mar03.ics".
func FileName(dept time.Time) string {
	return "Trip_" + dept.Format("Jan02") + ".ics"
}

// Summary returns the event title, e.g. "✈️ SYD Commute (AVV (Mon-Fri))".
func Summary(workAirport, label string) string {
	return fmt.Sprintf("✈️ %s Commute (%s)", workAirport, label)
}

// Build returns a calendar with one event from 06:00 on dept to 20:00 on
// ret, both in loc.
func Build(dept, ret time.Time, label, workAirport string, loc *time.Location) *ics.Calendar {
	if loc == nil {
		loc = time.Local
	}
	start := atHour(dept, startHour, loc)
	end := atHour(ret, endHour, loc)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	uid := fmt.Sprintf("commute-%s-%s-%s@commute-matrix",
		start.Format("20060102"), end.Format("20060102"), strings.ToLower(slug(label)))
	event := cal.AddEvent(uid)
	event.SetDtStampTime(time.Now().UTC())
	event.SetStartAt(start)
	event.SetEndAt(end)
	event.SetSummary(Summary(workAirport, label))
	return cal
}

// Create writes the trip calendar into dir and returns the export handle.
func Create(dir string, dept, ret time.Time, label, workAirport string, loc *time.Location) (*Export, error) {
	if ret.Before(dept) {
		return nil, fmt.Errorf("calendar: return %s before departure %s",
			ret.Format("2006-01-02"), dept.Format("2006-01-02"))
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("calendar: create directory %q: %w", dir, err)
	}

	name := FileName(dept)
	path := filepath.Join(dir, name)
	body := Build(dept, ret, label, workAirport, loc).Serialize()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return nil, fmt.Errorf("calendar: write %s: %w", name, err)
	}
	return &Export{Path: path, Name: name}, nil
}

func atHour(day time.Time, hour int, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, loc)
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
