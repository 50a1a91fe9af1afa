package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aluiziolira/commute-matrix/config"
	"github.com/aluiziolira/commute-matrix/flights"
	"github.com/aluiziolira/commute-matrix/models"
)

// PriceLookup prices a single leg. Implementations never fail; a failed
// lookup is reported through the Result and priced at the sentinel.
type PriceLookup interface {
	Lookup(ctx context.Context, q flights.Query) flights.Result
}

// Recorder persists one log row per priced cell.
type Recorder interface {
	Process(rec *models.LogRecord) error
}

// Analyzer prices every cell of the matrix for an anchor week.
type Analyzer struct {
	matrix      config.Matrix
	workAirport string
	prices      PriceLookup
	recorder    Recorder
	now         func() time.Time
}

// NewAnalyzer builds an analyzer from the configured matrix table.
func NewAnalyzer(cfg *config.Config, prices PriceLookup, recorder Recorder) *Analyzer {
	return &Analyzer{
		matrix:      cfg.Matrix,
		workAirport: cfg.WorkAirport,
		prices:      prices,
		recorder:    recorder,
		now:         time.Now,
	}
}

// Run analyzes each anchor in order.
func (a *Analyzer) Run(ctx context.Context, anchors []time.Time) ([]*models.WeekResult, error) {
	weeks := make([]*models.WeekResult, 0, len(anchors))
	for _, anchor := range anchors {
		week, err := a.Analyze(ctx, anchor)
		if err != nil {
			return weeks, err
		}
		weeks = append(weeks, week)
	}
	return weeks, nil
}

// Analyze prices all cells for one anchor week, records each as it is
// computed, and returns them cheapest first. Cells with equal totals keep
// their enumeration order. The only error is a failed log write.
func (a *Analyzer) Analyze(ctx context.Context, anchor time.Time) (*models.WeekResult, error) {
	slog.Info("analyzing matrix",
		slog.String("month", anchor.Format("Jan")),
		slog.String("anchor", anchor.Format(models.DateLayout)),
		slog.Int("departures", len(a.matrix.Departures)),
		slog.Int("returns", len(a.matrix.Returns)),
		slog.Int("airports", len(a.matrix.Airports)),
	)

	week := &models.WeekResult{
		Anchor:  anchor,
		Options: make([]*models.ItineraryCandidate, 0, a.matrix.Cells()),
	}

	for _, dep := range a.matrix.Departures {
		deptDate := anchor.AddDate(0, 0, dep.Offset)

		for _, ret := range a.matrix.Returns {
			retDate := anchor.AddDate(0, 0, ret.Offset)

			for _, airport := range a.matrix.Airports {
				candidate := a.priceCell(ctx, airport, deptDate, retDate, ret.TimeWindow)
				candidate.Label = fmt.Sprintf("%s-%s", dep.Label, ret.Label)
				week.Options = append(week.Options, candidate)

				if err := a.recorder.Process(models.NewLogRecord(anchor, candidate, a.now())); err != nil {
					return nil, fmt.Errorf("record %s for week %s: %w", candidate.Type(), anchor.Format(models.DateLayout), err)
				}
			}
		}
	}

	sort.SliceStable(week.Options, func(i, j int) bool {
		return week.Options[i].Total < week.Options[j].Total
	})

	best := week.Best()
	slog.Debug("week analyzed",
		slog.String("anchor", anchor.Format(models.DateLayout)),
		slog.String("best", best.Type()),
		slog.Int("total", best.Total),
	)
	return week, nil
}

func (a *Analyzer) priceCell(ctx context.Context, airport config.Airport, deptDate, retDate time.Time, window string) *models.ItineraryCandidate {
	out := a.prices.Lookup(ctx, flights.Query{
		Origin:      airport.Code,
		Destination: a.workAirport,
		Date:        deptDate,
	})
	in := a.prices.Lookup(ctx, flights.Query{
		Origin:      a.workAirport,
		Destination: airport.Code,
		Date:        retDate,
		TimeWindow:  window,
	})

	flight := out.Price() + in.Price()
	ground := a.matrix.GroundCost(airport)
	return &models.ItineraryCandidate{
		Airport:        airport.Code,
		Departure:      deptDate,
		Return:         retDate,
		OutboundPrice:  out.Price(),
		InboundPrice:   in.Price(),
		FlightTotal:    flight,
		GroundCost:     ground,
		Total:          flight + ground,
		Carrier:        out.Carrier(),
		Link:           out.Link(),
		OutboundFailed: !out.OK(),
		InboundFailed:  !in.OK(),
	}
}
