package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Client talks to the processor's intent API over HTTP. All calls run
// through a circuit breaker so a flapping processor fails fast instead of
// tying up checkout requests.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*Intent]
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "payment-processor",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breaker:    gobreaker.NewCircuitBreaker[*Intent](settings),
		logger:     logger,
	}
}

type createIntentRequest struct {
	Reference  string       `json:"reference"`
	Currency   string       `json:"currency"`
	LineItems  []IntentLine `json:"line_items"`
	SuccessURL string       `json:"success_url"`
	CancelURL  string       `json:"cancel_url"`
}

func (c *Client) CreateIntent(ctx context.Context, reference string, lines []IntentLine, successURL, cancelURL string) (*Intent, error) {
	intent, err := c.breaker.Execute(func() (*Intent, error) {
		return c.createIntent(ctx, reference, lines, successURL, cancelURL)
	})
	if err != nil {
		c.logger.Warn("create intent failed", zap.String("reference", reference), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProcessorFailed, err)
	}
	return intent, nil
}

func (c *Client) createIntent(ctx context.Context, reference string, lines []IntentLine, successURL, cancelURL string) (*Intent, error) {
	payload, err := json.Marshal(createIntentRequest{
		Reference:  reference,
		Currency:   "usd",
		LineItems:  lines,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("intent request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read intent response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("processor returned %d: %s", resp.StatusCode, body)
	}

	var intent Intent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("decode intent response: %w", err)
	}
	if intent.ID == "" || intent.RedirectURL == "" {
		return nil, fmt.Errorf("processor response missing id or redirect url")
	}
	return &intent, nil
}
