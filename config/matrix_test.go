package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultMatrix(t *testing.T) {
	m := DefaultMatrix()
	if err := m.Validate(); err != nil {
		t.Fatalf("default matrix invalid: %v", err)
	}
	if got := m.Cells(); got != 12 {
		t.Fatalf("cells=%d, want 12", got)
	}
	if got := m.DepartureLabels(); got != "Mon/Tue" {
		t.Fatalf("departure labels=%q, want Mon/Tue", got)
	}
	if got := m.GroundCost(m.Airports[0]); got != 85 {
		t.Fatalf("AVV ground=%d, want 85", got)
	}
	if got := m.GroundCost(m.Airports[1]); got != 0 {
		t.Fatalf("MEL ground=%d, want 0", got)
	}
}

func TestMatrixValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Matrix)
		wantErr string
	}{
		{
			name:    "no departures",
			mutate:  func(m *Matrix) { m.Departures = nil },
			wantErr: "departure",
		},
		{
			name:    "return before departure",
			mutate:  func(m *Matrix) { m.Returns[0].Offset = 1 },
			wantErr: "not after departure",
		},
		{
			name:    "duplicate airport",
			mutate:  func(m *Matrix) { m.Airports = append(m.Airports, m.Airports[0]) },
			wantErr: "listed twice",
		},
		{
			name:    "negative ground cost",
			mutate:  func(m *Matrix) { m.GroundCosts["MEL_LIFT"] = -5 },
			wantErr: "negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultMatrix()
			tt.mutate(&m)
			if err := m.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadMatrix(t *testing.T) {
	doc := `
departures:
  - {offset: 0, label: Mon}
returns:
  - {offset: 4, label: Fri}
  - {offset: 5, label: Sat Morn, time_window: "0600-1200"}
airports:
  - {code: mel, ground: MEL_PARKING}
ground_costs:
  MEL_PARKING: 88
`
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write matrix: %v", err)
	}

	m, err := LoadMatrix(path)
	if err != nil {
		t.Fatalf("load matrix: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("loaded matrix invalid: %v", err)
	}
	if m.Cells() != 2 {
		t.Fatalf("cells=%d, want 2", m.Cells())
	}
	if m.Airports[0].Code != "MEL" {
		t.Fatalf("airport code=%q, want MEL", m.Airports[0].Code)
	}
	if m.Returns[1].TimeWindow != "0600-1200" {
		t.Fatalf("time window=%q", m.Returns[1].TimeWindow)
	}
	if m.GroundCost(m.Airports[0]) != 88 {
		t.Fatalf("ground=%d, want 88", m.GroundCost(m.Airports[0]))
	}
}
