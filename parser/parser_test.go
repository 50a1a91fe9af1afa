package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/aluiziolira/commute-matrix/models"
)

func TestParseBestFlight(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantPrice   int
		wantAirline string
		wantNoPrice bool
		wantErr     error
	}{
		{
			name:        "first best flight wins",
			body:        `{"best_flights":[{"price":129,"flights":[{"airline":"Jetstar"}]},{"price":99,"flights":[{"airline":"Virgin"}]}]}`,
			wantPrice:   129,
			wantAirline: "Jetstar",
		},
		{
			name:    "empty best flights",
			body:    `{"best_flights":[],"other_flights":[{"price":50}]}`,
			wantErr: ErrNoBestFlights,
		},
		{
			name:    "missing best flights",
			body:    `{"search_metadata":{"status":"Success"}}`,
			wantErr: ErrNoBestFlights,
		},
		{
			name:        "missing price keeps airline",
			body:        `{"best_flights":[{"flights":[{"airline":"Qantas"}]}]}`,
			wantAirline: "Qantas",
			wantNoPrice: true,
		},
		{
			name:        "negative price is no price",
			body:        `{"best_flights":[{"price":-1,"flights":[{"airline":"Rex"}]}]}`,
			wantAirline: "Rex",
			wantNoPrice: true,
		},
		{
			name:    "missing airline",
			body:    `{"best_flights":[{"price":210,"flights":[]}]}`,
			wantErr: ErrMissingAirline,
		},
		{
			name:    "blank airline",
			body:    `{"best_flights":[{"price":210,"flights":[{"airline":"  "}]}]}`,
			wantErr: ErrMissingAirline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offer, err := ParseBestFlight([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if offer.Price != tt.wantPrice || offer.Airline != tt.wantAirline {
				t.Fatalf("offer=%+v, want %d/%s", offer, tt.wantPrice, tt.wantAirline)
			}
			if offer.HasPrice == tt.wantNoPrice {
				t.Fatalf("HasPrice=%v, want %v", offer.HasPrice, !tt.wantNoPrice)
			}
		})
	}
}

func TestParseBestFlightProviderError(t *testing.T) {
	_, err := ParseBestFlight([]byte(`{"error":"Invalid API key."}`))
	var provider ProviderError
	if !errors.As(err, &provider) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provider.Message != "Invalid API key." {
		t.Fatalf("message=%q", provider.Message)
	}
}

func TestParseBestFlightMalformed(t *testing.T) {
	if _, err := ParseBestFlight([]byte(`<html>`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNormalizeAirport(t *testing.T) {
	if got := NormalizeAirport("  mel "); got != "MEL" {
		t.Fatalf("NormalizeAirport=%q, want MEL", got)
	}
}

func TestValidateRecord(t *testing.T) {
	anchor := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	valid := func() *models.LogRecord {
		return &models.LogRecord{
			ScannedAt:     time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
			AnchorWeek:    anchor,
			ItineraryType: "Mon-Fri",
			Departure:     anchor,
			Return:        anchor.AddDate(0, 0, 4),
			Airport:       "AVV",
			TotalCost:     345,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*models.LogRecord)
		wantErr bool
	}{
		{name: "valid", mutate: func(*models.LogRecord) {}},
		{name: "sentinel totals are valid", mutate: func(r *models.LogRecord) { r.TotalCost = 2*9999 + 85 }},
		{name: "missing scan time", mutate: func(r *models.LogRecord) { r.ScannedAt = time.Time{} }, wantErr: true},
		{name: "missing type", mutate: func(r *models.LogRecord) { r.ItineraryType = " " }, wantErr: true},
		{name: "bad airport", mutate: func(r *models.LogRecord) { r.Airport = "AVALON" }, wantErr: true},
		{name: "return before departure", mutate: func(r *models.LogRecord) { r.Return = anchor.AddDate(0, 0, -1) }, wantErr: true},
		{name: "negative total", mutate: func(r *models.LogRecord) { r.TotalCost = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid()
			tt.mutate(rec)
			err := ValidateRecord(rec)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := ValidateRecord(nil); err == nil {
		t.Errorf("nil record should fail validation")
	}
}
