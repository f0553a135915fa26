package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client calls one downstream channel sender endpoint. The endpoints
// are black boxes: any 2xx response is a delivered message, anything
// else is a failure whose response body becomes the recorded error.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a sender client. ratePerSec caps outbound calls;
// zero means unlimited.
func NewClient(url, apiKey string, ratePerSec float64) *Client {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}

	return &Client{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
	}
}

func (c *Client) post(ctx context.Context, body any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// The response body is the error text the caller records.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("%s", msg)
}

// Senders bundles the three channel clients
type Senders struct {
	email    *Client
	sms      *Client
	whatsapp *Client
}

func NewSenders(email, sms, whatsapp *Client) *Senders {
	return &Senders{email: email, sms: sms, whatsapp: whatsapp}
}

func (s *Senders) SendEmail(ctx context.Context, p EmailPayload) error {
	return s.email.post(ctx, p)
}

func (s *Senders) SendSMS(ctx context.Context, p SMSPayload) error {
	return s.sms.post(ctx, p)
}

func (s *Senders) SendWhatsApp(ctx context.Context, p WhatsAppPayload) error {
	return s.whatsapp.post(ctx, p)
}
