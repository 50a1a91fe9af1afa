package report

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/aluiziolira/commute-matrix/models"
)

const (
	dealAccent    = template.CSS("5px solid #27ae60")
	regularAccent = template.CSS("5px solid #2c3e50")
)

var digestTemplate = template.Must(template.New("digest").Parse(`<html><body style="font-family: Helvetica, Arial;">
<h2>✈️ Commute Matrix Analysis</h2>
{{- range .Weeks}}
<div style="border:1px solid #ddd; padding:15px; margin-bottom:20px; border-radius:8px;">
  <h3 style="margin-top:0; border-bottom:1px solid #eee; padding-bottom:5px;">Week of {{.Anchor}}</h3>
  <div style="background-color:#f4f6f7; padding:15px; border-left: {{.Accent}};">
    <span style="font-size:0.9em; color:#7f8c8d; text-transform:uppercase; letter-spacing:1px;">Best Option</span><br>
    <strong style="font-size:1.2em;">{{.Best.Type}}</strong><br>
    <div style="margin:5px 0;">🛫 {{.Best.Departure}} &rarr; 🛬 {{.Best.Return}}</div>
    Flight: ${{.Best.Flight}} | Total Est: <strong>${{.Best.Total}}</strong><br>
    {{- if .Best.Link}}
    <a href="{{.Best.Link}}" style="display:inline-block; margin-top:10px; color:#2980b9; text-decoration:none;">🔗 Direct Booking Link</a>
    {{- end}}
  </div>
  {{- with .RunnerUp}}
  <div style="margin-top:10px; font-size:0.9em; color:#666; padding-left:10px;">🥈 Runner Up: {{.Type}} (${{.Total}})</div>
  {{- end}}
</div>
{{- end}}
</body></html>
`))

type digestView struct {
	Weeks []weekView
}

type weekView struct {
	Anchor   string
	Accent   template.CSS
	Deal     bool
	Best     optionView
	RunnerUp *optionView
}

type optionView struct {
	Type      string
	Departure string
	Return    string
	Flight    int
	Total     int
	Link      string
}

func newOptionView(c *models.ItineraryCandidate) optionView {
	return optionView{
		Type:      c.Type(),
		Departure: c.Departure.Format("Mon 02"),
		Return:    c.Return.Format("Mon 02"),
		Flight:    c.FlightTotal,
		Total:     c.Total,
		Link:      c.Link,
	}
}

// newWeekView returns false for weeks without any priced option.
func newWeekView(w *models.WeekResult, threshold int) (weekView, bool) {
	best := w.Best()
	if best == nil {
		return weekView{}, false
	}
	v := weekView{
		Anchor: w.Anchor.Format("02 Jan"),
		Accent: regularAccent,
		Best:   newOptionView(best),
	}
	if best.Total < threshold {
		v.Deal = true
		v.Accent = dealAccent
	}
	if ru := w.RunnerUp(); ru != nil {
		o := newOptionView(ru)
		v.RunnerUp = &o
	}
	return v, true
}

func renderDigest(view digestView) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}
