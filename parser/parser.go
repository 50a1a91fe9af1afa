package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/commute-matrix/models"
)

var (
	// ErrNoBestFlights means the provider answered but offered no best option.
	ErrNoBestFlights = errors.New("parser: no best flights")
	// ErrMissingAirline means the best option names no operating airline.
	ErrMissingAirline = errors.New("parser: best flight has no airline")
)

// ProviderError is an error message reported inside a provider response.
type ProviderError struct {
	Message string
}

func (e ProviderError) Error() string {
	return "provider: " + e.Message
}

// Offer is the cheapest itinerary the provider reported for a search.
// HasPrice is false when the option carried no usable price; callers
// price such an offer at their own fallback.
type Offer struct {
	Price    int
	HasPrice bool
	Airline  string
}

type searchResponse struct {
	Error       string       `json:"error"`
	BestFlights []bestFlight `json:"best_flights"`
}

type bestFlight struct {
	Price   *float64 `json:"price"`
	Flights []struct {
		Airline string `json:"airline"`
	} `json:"flights"`
}

// ParseBestFlight decodes a google_flights search response and returns
// the first entry of best_flights.
func ParseBestFlight(body []byte) (Offer, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Offer{}, fmt.Errorf("decode search response: %w", err)
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return Offer{}, ProviderError{Message: msg}
	}
	if len(resp.BestFlights) == 0 {
		return Offer{}, ErrNoBestFlights
	}

	best := resp.BestFlights[0]
	airline := ""
	if len(best.Flights) > 0 {
		airline = strings.TrimSpace(best.Flights[0].Airline)
	}
	if airline == "" {
		return Offer{}, ErrMissingAirline
	}

	offer := Offer{Airline: airline}
	if best.Price != nil && *best.Price >= 0 {
		offer.Price = int(*best.Price + 0.5)
		offer.HasPrice = true
	}
	return offer, nil
}

// NormalizeAirport upper-cases and trims an IATA code.
func NormalizeAirport(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateRecord ensures a log record carries everything the log needs.
func ValidateRecord(r *models.LogRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if r.ScannedAt.IsZero() {
		return fmt.Errorf("record missing scan time")
	}
	if r.AnchorWeek.IsZero() {
		return fmt.Errorf("record missing anchor week")
	}
	if strings.TrimSpace(r.ItineraryType) == "" {
		return fmt.Errorf("record missing itinerary type")
	}
	if len(NormalizeAirport(r.Airport)) != 3 {
		return fmt.Errorf("record has invalid airport %q", r.Airport)
	}
	if r.Return.Before(r.Departure) {
		return fmt.Errorf("record %s returns before it departs", r.ItineraryType)
	}
	if r.TotalCost < 0 {
		return fmt.Errorf("record %s has negative total %d", r.ItineraryType, r.TotalCost)
	}
	return nil
}
