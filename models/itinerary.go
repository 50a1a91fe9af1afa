// Package models defines data structures for the commute matrix.
package models

import (
	"fmt"
	"time"
)

// DateLayout is how calendar dates are written to the log and links.
const DateLayout = "2006-01-02"

// ItineraryCandidate is one priced cell of the matrix for an anchor week.
type ItineraryCandidate struct {
	Airport        string    `json:"airport"`
	Label          string    `json:"itin_type"`
	Departure      time.Time `json:"dept_date"`
	Return         time.Time `json:"return_date"`
	OutboundPrice  int       `json:"outbound_price"`
	InboundPrice   int       `json:"inbound_price"`
	FlightTotal    int       `json:"flight"`
	GroundCost     int       `json:"ground"`
	Total          int       `json:"total"`
	Carrier        string    `json:"airline"`
	Link           string    `json:"link"`
	OutboundFailed bool      `json:"outbound_failed,omitempty"`
	InboundFailed  bool      `json:"inbound_failed,omitempty"`
}

// Type renders the candidate as "AVV (Mon-Thu Night)".
func (c *ItineraryCandidate) Type() string {
	return fmt.Sprintf("%s (%s)", c.Airport, c.Label)
}

// Failed reports whether either leg fell back to the sentinel price.
func (c *ItineraryCandidate) Failed() bool {
	return c.OutboundFailed || c.InboundFailed
}

// WeekResult holds every candidate for one anchor week, cheapest first.
type WeekResult struct {
	Anchor  time.Time
	Options []*ItineraryCandidate
}

// Best returns the cheapest candidate.
func (w *WeekResult) Best() *ItineraryCandidate {
	if w == nil || len(w.Options) == 0 {
		return nil
	}
	return w.Options[0]
}

// RunnerUp returns the second cheapest candidate, or nil.
func (w *WeekResult) RunnerUp() *ItineraryCandidate {
	if w == nil || len(w.Options) < 2 {
		return nil
	}
	return w.Options[1]
}

// LogRecord is the flattened, append-only row written for every candidate.
type LogRecord struct {
	ScannedAt     time.Time `csv:"scanned_at" json:"scanned_at"`
	AnchorWeek    time.Time `csv:"anchor_week" json:"anchor_week"`
	ItineraryType string    `csv:"itin_type" json:"itin_type"`
	Departure     time.Time `csv:"dept_date" json:"dept_date"`
	Return        time.Time `csv:"return_date" json:"return_date"`
	Airport       string    `csv:"airport" json:"airport"`
	TotalCost     int       `csv:"total_cost" json:"total_cost"`
}

// NewLogRecord flattens a candidate into a log row.
func NewLogRecord(anchor time.Time, c *ItineraryCandidate, scannedAt time.Time) *LogRecord {
	return &LogRecord{
		ScannedAt:     scannedAt,
		AnchorWeek:    anchor,
		ItineraryType: c.Label,
		Departure:     c.Departure,
		Return:        c.Return,
		Airport:       c.Airport,
		TotalCost:     c.Total,
	}
}

// ScanResult holds the overall result of a matrix run.
type ScanResult struct {
	Weeks         []*WeekResult
	StartTime     time.Time
	EndTime       time.Time
	LookupCount   int
	FailedLookups int
	CacheHits     int
	RetryCount    int
	ErrorsByType  map[string]int
	RecordCount   int
}
