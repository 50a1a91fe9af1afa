package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultPushoverURL is the Pushover message endpoint.
const DefaultPushoverURL = "https://api.pushover.net/1/messages.json"

// Push is one push notification.
type Push struct {
	Title   string
	Message string
	URL     string
}

// PushError is returned when Pushover rejects a message.
type PushError struct {
	Status int
	Errors []string
}

func (e *PushError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("pushover: http status %d", e.Status)
	}
	return fmt.Sprintf("pushover: http status %d: %s", e.Status, strings.Join(e.Errors, "; "))
}

// Pushover posts form-encoded messages to the Pushover API.
type Pushover struct {
	endpoint string
	token    string
	user     string
	client   *http.Client
}

// NewPushover returns a client. A nil httpClient gets a client with a 15s
// timeout.
func NewPushover(endpoint, token, user string, httpClient *http.Client) (*Pushover, error) {
	if token == "" || user == "" {
		return nil, errors.New("pushover: token and user key are required")
	}
	if endpoint == "" {
		endpoint = DefaultPushoverURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Pushover{endpoint: endpoint, token: token, user: user, client: httpClient}, nil
}

// Push sends msg.
func (p *Pushover) Push(ctx context.Context, msg Push) error {
	form := url.Values{}
	form.Set("token", p.token)
	form.Set("user", p.user)
	form.Set("message", msg.Message)
	form.Set("title", msg.Title)
	if msg.URL != "" {
		form.Set("url", msg.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("pushover: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	pe := &PushError{Status: resp.StatusCode}
	var body struct {
		Errors []string `json:"errors"`
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil {
		if json.Unmarshal(data, &body) == nil {
			pe.Errors = body.Errors
		}
	}
	return pe
}
