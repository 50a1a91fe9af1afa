package flights

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/commute-matrix/models"
)

// SentinelPrice stands in for a leg that could not be priced. It is high
// enough to lose any comparison against a real fare.
const SentinelPrice = 9999

// Query is a single one-way search.
type Query struct {
	Origin      string
	Destination string
	Date        time.Time
	// TimeWindow is a best-effort departure filter such as "1600-2359".
	// The provider may ignore it.
	TimeWindow string
}

func (q Query) key() string {
	return strings.Join([]string{q.Origin, q.Destination, q.Date.Format(models.DateLayout), q.TimeWindow}, "|")
}

func (q Query) validate() error {
	if len(q.Origin) != 3 || len(q.Destination) != 3 {
		return fmt.Errorf("invalid route %q -> %q", q.Origin, q.Destination)
	}
	if q.Date.IsZero() {
		return fmt.Errorf("query %s->%s has no date", q.Origin, q.Destination)
	}
	return nil
}

// Quote is a successfully priced leg.
type Quote struct {
	Price   int
	Carrier string
	Link    string
}

// Result is the outcome of a lookup: either a Quote or the error that
// prevented one. Price, Carrier and Link apply the sentinel on failure.
type Result struct {
	Query Query
	Quote Quote
	Err   error
}

// OK reports whether the leg was priced.
func (r Result) OK() bool {
	return r.Err == nil
}

// Price returns the fare, or SentinelPrice when the lookup failed.
func (r Result) Price() int {
	if r.Err != nil {
		return SentinelPrice
	}
	return r.Quote.Price
}

// Carrier returns the airline, "None" when the provider answered without
// a best option (including an in-body error message) and "Error" for any
// other failure.
func (r Result) Carrier() string {
	if r.Err == nil {
		return r.Quote.Carrier
	}
	switch errorTypeLabel(r.Err) {
	case "no_options", "provider":
		return "None"
	}
	return "Error"
}

// Link returns the booking link, empty on failure.
func (r Result) Link() string {
	if r.Err != nil {
		return ""
	}
	return r.Quote.Link
}

// ErrorType is the failure category, empty on success.
func (r Result) ErrorType() string {
	if r.Err == nil {
		return ""
	}
	return errorTypeLabel(r.Err)
}

// BookingLink is the Google Flights search page for a leg.
func BookingLink(q Query) string {
	search := fmt.Sprintf("Flights to %s from %s on %s", q.Destination, q.Origin, q.Date.Format(models.DateLayout))
	return "https://www.google.com/travel/flights?q=" + url.PathEscape(search)
}
