package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
)

const testPushURL = "https://pushover.test/1/messages.json"

func newTestPushover(t *testing.T, responder httpmock.Responder) (*Pushover, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, testPushURL, responder)

	p, err := NewPushover(testPushURL, "tok", "usr", &http.Client{Transport: transport})
	if err != nil {
		t.Fatalf("new pushover: %v", err)
	}
	return p, transport
}

func TestPushoverSendsForm(t *testing.T) {
	var got http.Header
	var form map[string]string
	p, transport := newTestPushover(t, func(req *http.Request) (*http.Response, error) {
		if err := req.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		got = req.Header
		form = map[string]string{}
		for k := range req.PostForm {
			form[k] = req.PostForm.Get(k)
		}
		return httpmock.NewStringResponse(200, `{"status":1}`), nil
	})

	err := p.Push(context.Background(), Push{
		Title:   "Commute Matrix 📊",
		Message: "Matrix Scan Complete. 2 deals found below $380.",
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if transport.GetTotalCallCount() != 1 {
		t.Fatalf("calls=%d, want 1", transport.GetTotalCallCount())
	}
	if ct := got.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		t.Fatalf("content-type=%q", ct)
	}
	want := map[string]string{
		"token":   "tok",
		"user":    "usr",
		"title":   "Commute Matrix 📊",
		"message": "Matrix Scan Complete. 2 deals found below $380.",
	}
	for k, v := range want {
		if form[k] != v {
			t.Fatalf("form[%s]=%q, want %q", k, form[k], v)
		}
	}
	if _, ok := form["url"]; ok {
		t.Fatalf("url should be omitted when empty")
	}
}

func TestPushoverIncludesURL(t *testing.T) {
	var link string
	p, _ := newTestPushover(t, func(req *http.Request) (*http.Response, error) {
		req.ParseForm()
		link = req.PostForm.Get("url")
		return httpmock.NewStringResponse(200, `{"status":1}`), nil
	})

	if err := p.Push(context.Background(), Push{Title: "t", Message: "m", URL: "https://example.test/a"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if link != "https://example.test/a" {
		t.Fatalf("url=%q", link)
	}
}

func TestPushoverRejected(t *testing.T) {
	p, _ := newTestPushover(t, httpmock.NewStringResponder(400, `{"status":0,"errors":["user identifier is invalid"]}`))

	err := p.Push(context.Background(), Push{Title: "t", Message: "m"})
	var pe *PushError
	if !errors.As(err, &pe) {
		t.Fatalf("err=%v, want *PushError", err)
	}
	if pe.Status != 400 || len(pe.Errors) != 1 || pe.Errors[0] != "user identifier is invalid" {
		t.Fatalf("push error=%+v", pe)
	}
}

func TestNewPushoverRequiresCredentials(t *testing.T) {
	if _, err := NewPushover("", "", "usr", nil); err == nil {
		t.Fatalf("expected error for missing token")
	}
	p, err := NewPushover("", "tok", "usr", nil)
	if err != nil {
		t.Fatalf("new pushover: %v", err)
	}
	if p.endpoint != DefaultPushoverURL {
		t.Fatalf("endpoint=%q", p.endpoint)
	}
}

func TestNewSMTPMailerValidation(t *testing.T) {
	cases := []struct {
		name    string
		cfg     SMTPConfig
		wantErr bool
	}{
		{"valid", SMTPConfig{Host: "smtp.test", Port: 587, From: "a@test.io", To: "b@test.io"}, false},
		{"missing host", SMTPConfig{Port: 587, From: "a@test.io", To: "b@test.io"}, true},
		{"bad port", SMTPConfig{Host: "smtp.test", From: "a@test.io", To: "b@test.io"}, true},
		{"missing receiver", SMTPConfig{Host: "smtp.test", Port: 587, From: "a@test.io"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSMTPMailer(tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestSMTPMailerMessage(t *testing.T) {
	dir := t.TempDir()
	attachment := filepath.Join(dir, "Trip_Mar03.ics")
	if err := os.WriteFile(attachment, []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), 0o644); err != nil {
		t.Fatalf("write attachment: %v", err)
	}

	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.test", Port: 587, From: "sender@test.io", To: "receiver@test.io"})
	if err != nil {
		t.Fatalf("new mailer: %v", err)
	}
	msg, err := m.Message(&Email{
		Subject:     "Commute Matrix Report (Mon/Tue Options)",
		HTML:        "<html><body><h2>Week of 03 Mar</h2></body></html>",
		Attachments: []string{attachment},
	})
	if err != nil {
		t.Fatalf("message: %v", err)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}
	raw := buf.String()
	for _, want := range []string{
		"sender@test.io",
		"receiver@test.io",
		"Commute Matrix Report (Mon/Tue Options)",
		"text/html",
		"text/calendar",
		`filename="Trip_Mar03.ics"`,
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("message missing %q:\n%s", want, raw)
		}
	}
}

func TestSMTPMailerRejectsBadAddress(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.test", Port: 587, From: "not an address", To: "b@test.io"})
	if err != nil {
		t.Fatalf("new mailer: %v", err)
	}
	if _, err := m.Message(&Email{Subject: "s"}); err == nil {
		t.Fatalf("expected address error")
	}
}

func TestLogMailerReportsNotSent(t *testing.T) {
	err := (LogMailer{}).Send(context.Background(), &Email{Subject: "s", Attachments: []string{"/tmp/x.ics"}})
	if !errors.Is(err, ErrNotSent) {
		t.Fatalf("err=%v, want ErrNotSent", err)
	}
}
