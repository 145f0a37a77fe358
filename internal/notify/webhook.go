package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/template"
	"time"
)

// Webhook defaults.
const (
	DefaultWebhookTimeout     = 10 * time.Second
	DefaultWebhookAttempts    = 3
	DefaultWebhookInitialWait = time.Second
)

// Backoff strategies between delivery attempts.
const (
	BackoffFixed       = "fixed"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// WebhookConfig configures a webhook notifier.
type WebhookConfig struct {
	// Name is a human-readable name for this webhook.
	Name string `yaml:"name"`

	URL string `yaml:"url"`

	// Method is POST, PUT or PATCH. Defaults to POST.
	Method string `yaml:"method"`

	Headers map[string]string `yaml:"headers"`

	// Events limits which event types are sent. Empty sends all.
	Events []string `yaml:"events"`

	// PayloadTemplate is a text/template for the request body. The default
	// body is JSON.
	PayloadTemplate string `yaml:"payload_template"`

	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     string        `yaml:"backoff"`
	InitialWait time.Duration `yaml:"initial_wait"`
}

// Validate checks the configuration without applying defaults.
func (c WebhookConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid URL: %s", c.URL)
	}

	switch strings.ToUpper(c.Method) {
	case "", http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return fmt.Errorf("invalid method: %s (must be POST, PUT, or PATCH)", c.Method)
	}

	switch strings.ToLower(c.Backoff) {
	case "", BackoffFixed, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("invalid backoff strategy: %s (must be linear, exponential, or fixed)", c.Backoff)
	}

	for _, e := range c.Events {
		if !knownEvent(e) {
			return fmt.Errorf("unknown event type: %s", e)
		}
	}

	if c.MaxAttempts < 0 || c.Timeout < 0 || c.InitialWait < 0 {
		return fmt.Errorf("timeouts and attempts must not be negative")
	}

	if c.PayloadTemplate != "" {
		if _, err := template.New("payload").Parse(c.PayloadTemplate); err != nil {
			return fmt.Errorf("invalid payload template: %w", err)
		}
	}
	return nil
}

func knownEvent(name string) bool {
	for _, t := range AllEventTypes() {
		if strings.EqualFold(name, string(t)) {
			return true
		}
	}
	return false
}

// Webhook posts events to an HTTP endpoint.
type Webhook struct {
	config   WebhookConfig
	client   *http.Client
	template *template.Template

	// sleep waits between attempts. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

var _ Notifier = (*Webhook)(nil)

// NewWebhook validates config and returns a notifier for it.
func NewWebhook(config WebhookConfig) (*Webhook, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("webhook %q: %w", config.Name, err)
	}

	if config.Method == "" {
		config.Method = http.MethodPost
	}
	config.Method = strings.ToUpper(config.Method)
	if config.Timeout == 0 {
		config.Timeout = DefaultWebhookTimeout
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = DefaultWebhookAttempts
	}
	if config.Backoff == "" {
		config.Backoff = BackoffExponential
	}
	if config.InitialWait == 0 {
		config.InitialWait = DefaultWebhookInitialWait
	}

	w := &Webhook{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		sleep:  sleepContext,
	}
	if config.PayloadTemplate != "" {
		w.template = template.Must(template.New("payload").Parse(config.PayloadTemplate))
	}
	return w, nil
}

// Name returns the notifier name.
func (w *Webhook) Name() string {
	if w.config.Name != "" {
		return "webhook:" + w.config.Name
	}
	return "webhook"
}

// SupportsEvent reports whether t is one of the configured events.
func (w *Webhook) SupportsEvent(t EventType) bool {
	if len(w.config.Events) == 0 {
		return true
	}
	for _, e := range w.config.Events {
		if strings.EqualFold(e, string(t)) {
			return true
		}
	}
	return false
}

// Send delivers event, retrying failed attempts with the configured backoff.
func (w *Webhook) Send(ctx context.Context, event Event) error {
	payload, err := w.payload(event)
	if err != nil {
		return fmt.Errorf("failed to build payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= w.config.MaxAttempts; attempt++ {
		if lastErr = w.post(ctx, payload); lastErr == nil {
			return nil
		}
		if attempt < w.config.MaxAttempts {
			if err := w.sleep(ctx, w.backoff(attempt)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", w.config.MaxAttempts, lastErr)
}

func (w *Webhook) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, w.config.Method, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// templateData is the view of an event given to payload templates.
type templateData struct {
	Type        string
	Source      string
	AccessKeyID string
	Expiration  string
	Error       string
	Timestamp   string
}

func (w *Webhook) payload(event Event) ([]byte, error) {
	data := templateData{
		Type:        string(event.Type),
		Source:      event.Source,
		AccessKeyID: event.AccessKeyID,
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
	}
	if !event.Expiration.IsZero() {
		data.Expiration = event.Expiration.UTC().Format(time.RFC3339)
	}
	if event.Error != nil {
		data.Error = event.Error.Error()
	}

	if w.template != nil {
		var buf bytes.Buffer
		if err := w.template.Execute(&buf, data); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	body := map[string]string{
		"event":     data.Type,
		"source":    data.Source,
		"timestamp": data.Timestamp,
	}
	if data.AccessKeyID != "" {
		body["access_key_id"] = data.AccessKeyID
	}
	if data.Expiration != "" {
		body["expiration"] = data.Expiration
	}
	if data.Error != "" {
		body["error"] = data.Error
	}
	return json.Marshal(body)
}

func (w *Webhook) backoff(attempt int) time.Duration {
	initial := w.config.InitialWait
	switch strings.ToLower(w.config.Backoff) {
	case BackoffLinear:
		return initial * time.Duration(attempt)
	case BackoffExponential:
		return initial * time.Duration(1<<(attempt-1))
	default:
		return initial
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
