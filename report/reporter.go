// Package report composes the weekly matrix digest and delivers it by
// email, with calendar exports for good deals and a push summary.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/commute-matrix/calendar"
	"github.com/aluiziolira/commute-matrix/config"
	"github.com/aluiziolira/commute-matrix/models"
	"github.com/aluiziolira/commute-matrix/notify"
)

// PushTitle is the title of the post-send push notification.
const PushTitle = "Commute Matrix 📊"

// DefaultSendTimeout bounds the email and push calls of one delivery.
const DefaultSendTimeout = 2 * time.Minute

// Mailer sends the digest email.
type Mailer interface {
	Send(ctx context.Context, e *notify.Email) error
}

// Pusher sends a push notification.
type Pusher interface {
	Push(ctx context.Context, p notify.Push) error
}

// Outcome summarizes one delivery attempt.
type Outcome struct {
	Sent        bool
	Deals       int
	Attachments []string
}

// Reporter turns week results into one email and one push notification.
type Reporter struct {
	mailer      Mailer
	pusher      Pusher
	threshold   int
	calendarDir string
	workAirport string
	labels      string
	loc         *time.Location
	sendTimeout time.Duration
}

// NewReporter builds a reporter. pusher may be nil.
func NewReporter(cfg *config.Config, mailer Mailer, pusher Pusher) *Reporter {
	return &Reporter{
		mailer:      mailer,
		pusher:      pusher,
		threshold:   cfg.GoodPriceThreshold,
		calendarDir: cfg.CalendarDir,
		workAirport: cfg.WorkAirport,
		labels:      cfg.Matrix.DepartureLabels(),
		loc:         cfg.Location(),
		sendTimeout: DefaultSendTimeout,
	}
}

// Subject returns the digest subject line.
func (r *Reporter) Subject() string {
	return fmt.Sprintf("Commute Matrix Report (%s Options)", r.labels)
}

// PushMessage returns the summary pushed after a successful send.
func (r *Reporter) PushMessage(deals int) string {
	return fmt.Sprintf("Matrix Scan Complete. %d deals found below $%d.", deals, r.threshold)
}

// Deliver renders weeks, attaches a calendar export for every week whose
// best total is under the threshold, and sends the email. A send failure
// is logged and reported through Outcome.Sent; the push is only sent
// after a successful email. Exports are removed before Deliver returns.
//
// Sends ignore ctx cancellation so an interrupted scan still reports what
// it priced; they are bounded by the send timeout instead.
func (r *Reporter) Deliver(ctx context.Context, weeks []*models.WeekResult) (*Outcome, error) {
	out := &Outcome{}
	var exports []*calendar.Export
	queued := make(map[string]bool)
	defer func() {
		for _, e := range exports {
			if err := e.Remove(); err != nil {
				slog.Warn("calendar cleanup failed", slog.String("file", e.Name), slog.Any("error", err))
			}
		}
	}()

	view := digestView{Weeks: make([]weekView, 0, len(weeks))}
	for _, w := range weeks {
		if w == nil {
			continue
		}
		wv, ok := newWeekView(w, r.threshold)
		if !ok {
			slog.Warn("week has no options", slog.String("anchor", w.Anchor.Format(models.DateLayout)))
			continue
		}
		view.Weeks = append(view.Weeks, wv)
		if !wv.Deal {
			continue
		}

		out.Deals++
		best := w.Best()
		name := calendar.FileName(best.Departure)
		if queued[name] {
			continue
		}
		export, err := calendar.Create(r.calendarDir, best.Departure, best.Return, best.Type(), r.workAirport, r.loc)
		if err != nil {
			slog.Warn("calendar export failed",
				slog.String("anchor", w.Anchor.Format(models.DateLayout)),
				slog.Any("error", err),
			)
			continue
		}
		queued[name] = true
		exports = append(exports, export)
		out.Attachments = append(out.Attachments, export.Name)
	}

	html, err := renderDigest(view)
	if err != nil {
		return out, err
	}

	email := &notify.Email{
		Subject: r.Subject(),
		HTML:    html,
	}
	for _, e := range exports {
		email.Attachments = append(email.Attachments, e.Path)
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.sendTimeout)
	defer cancel()

	if err := r.mailer.Send(sendCtx, email); err != nil {
		if errors.Is(err, notify.ErrNotSent) {
			slog.Info("email not sent", slog.Int("deals", out.Deals))
		} else {
			slog.Error("email failed", slog.Any("error", err))
		}
		return out, nil
	}
	out.Sent = true
	slog.Info("matrix report sent",
		slog.Int("weeks", len(view.Weeks)),
		slog.Int("deals", out.Deals),
		slog.Int("attachments", len(out.Attachments)),
	)

	if r.pusher != nil {
		if err := r.pusher.Push(sendCtx, notify.Push{Title: PushTitle, Message: r.PushMessage(out.Deals)}); err != nil {
			slog.Debug("push notification failed", slog.Any("error", err))
		}
	}
	return out, nil
}
