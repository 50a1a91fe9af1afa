package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Matrix describes the departure/return/airport cross product scanned for
// every anchor week, plus the ground cost table the airports draw from.
type Matrix struct {
	Departures  []Departure    `yaml:"departures"`
	Returns     []Return       `yaml:"returns"`
	Airports    []Airport      `yaml:"airports"`
	GroundCosts map[string]int `yaml:"ground_costs"`
}

// Departure is a day offset from the anchor Monday for the outbound leg.
type Departure struct {
	Offset int    `yaml:"offset"`
	Label  string `yaml:"label"`
}

// Return is a day offset for the inbound leg with an optional
// provider-side departure time window such as "1600-2359".
type Return struct {
	Offset     int    `yaml:"offset"`
	Label      string `yaml:"label"`
	TimeWindow string `yaml:"time_window"`
}

// Airport is a home airport and the ground cost key it is charged with.
type Airport struct {
	Code   string `yaml:"code"`
	Ground string `yaml:"ground"`
}

// DefaultMatrix is Mon/Tue out, Thu night/Fri/Sat morning back, from
// Avalon (parking) or Melbourne (lift).
func DefaultMatrix() Matrix {
	return Matrix{
		Departures: []Departure{
			{Offset: 0, Label: "Mon"},
			{Offset: 1, Label: "Tue"},
		},
		Returns: []Return{
			{Offset: 3, Label: "Thu Night", TimeWindow: "1600-2359"},
			{Offset: 4, Label: "Fri"},
			{Offset: 5, Label: "Sat Morn", TimeWindow: "0600-1200"},
		},
		Airports: []Airport{
			{Code: "AVV", Ground: "AVV_PARKING"},
			{Code: "MEL", Ground: "MEL_LIFT"},
		},
		GroundCosts: map[string]int{
			"AVV_PARKING": 85,
			"MEL_PARKING": 88,
			"MEL_LIFT":    0,
		},
	}
}

// LoadMatrix reads a matrix table from a YAML file.
func LoadMatrix(path string) (Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Matrix{}, fmt.Errorf("read matrix file: %w", err)
	}

	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Matrix{}, fmt.Errorf("decode matrix file: %w", err)
	}
	for i := range m.Airports {
		m.Airports[i].Code = strings.ToUpper(strings.TrimSpace(m.Airports[i].Code))
	}
	return m, nil
}

// Cells is the number of itineraries priced per anchor week.
func (m Matrix) Cells() int {
	return len(m.Departures) * len(m.Returns) * len(m.Airports)
}

// GroundCost returns the fixed ground cost charged for an airport.
func (m Matrix) GroundCost(a Airport) int {
	return m.GroundCosts[a.Ground]
}

// DepartureLabels joins the departure labels, e.g. "Mon/Tue".
func (m Matrix) DepartureLabels() string {
	labels := make([]string, 0, len(m.Departures))
	for _, d := range m.Departures {
		labels = append(labels, d.Label)
	}
	return strings.Join(labels, "/")
}

// Validate checks the table is non-empty and internally consistent.
func (m Matrix) Validate() error {
	if len(m.Departures) == 0 {
		return fmt.Errorf("at least one departure is required")
	}
	if len(m.Returns) == 0 {
		return fmt.Errorf("at least one return is required")
	}
	if len(m.Airports) == 0 {
		return fmt.Errorf("at least one airport is required")
	}
	for _, d := range m.Departures {
		if d.Offset < 0 {
			return fmt.Errorf("departure %q has negative offset", d.Label)
		}
		if d.Label == "" {
			return fmt.Errorf("departure at offset %d needs a label", d.Offset)
		}
		for _, r := range m.Returns {
			if r.Offset <= d.Offset {
				return fmt.Errorf("return %q (offset %d) is not after departure %q (offset %d)", r.Label, r.Offset, d.Label, d.Offset)
			}
		}
	}
	for _, r := range m.Returns {
		if r.Label == "" {
			return fmt.Errorf("return at offset %d needs a label", r.Offset)
		}
	}
	seen := make(map[string]struct{}, len(m.Airports))
	for _, a := range m.Airports {
		if len(a.Code) != 3 {
			return fmt.Errorf("airport code %q must be 3 letters", a.Code)
		}
		if _, dup := seen[a.Code]; dup {
			return fmt.Errorf("airport %s listed twice", a.Code)
		}
		seen[a.Code] = struct{}{}
		cost, ok := m.GroundCosts[a.Ground]
		if !ok {
			return fmt.Errorf("airport %s references unknown ground cost %q", a.Code, a.Ground)
		}
		if cost < 0 {
			return fmt.Errorf("ground cost %q cannot be negative", a.Ground)
		}
	}
	return nil
}
