package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// BaseURL is the Stripe API base URL
	BaseURL = "https://api.stripe.com"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
)

// Client handles all Stripe API interactions
type Client struct {
	secretKey   string
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
}

// Config holds configuration for the Stripe client
type Config struct {
	SecretKey   string
	BaseURL     string
	Timeout     time.Duration
	RetryConfig *RetryConfig // Optional custom retry config
}

// RetryConfig holds retry configuration for failed requests
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts (default: 2)
	InitialBackoff time.Duration // Initial backoff duration (default: 500ms)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 30s)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// NewClient creates a new Stripe API client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	retryConfig := DefaultRetryConfig()
	if config.RetryConfig != nil {
		retryConfig = *config.RetryConfig
	}

	return &Client{
		secretKey: config.SecretKey,
		baseURL:   config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retryConfig: retryConfig,
	}
}

// PaymentIntent represents a Stripe PaymentIntent object
type PaymentIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata"`
}

// Charge represents the subset of a Stripe Charge we consume
type Charge struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	ReceiptURL    string `json:"receipt_url"`
	Refunded      bool   `json:"refunded"`
}

// APIError is a non-2xx response from the Stripe API
type APIError struct {
	StatusCode int
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: %s (status %d, code %s)", e.Message, e.StatusCode, e.Code)
}

// AmountInMinorUnits converts a decimal price to the gateway's integer
// minor-unit representation (e.g. dollars to cents), rounded.
func AmountInMinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// CreatePaymentIntent creates a PaymentIntent for the given minor-unit amount.
// Metadata keys (courseId, userId) travel with the intent and come back on
// webhook events.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var intent PaymentIntent
	if err := c.doRequest(ctx, http.MethodPost, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetPaymentIntent retrieves a PaymentIntent by id
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	var intent PaymentIntent
	if err := c.doRequest(ctx, http.MethodGet, "/v1/payment_intents/"+id, nil, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// doRequest executes a form-encoded API call with retry on transient failures
func (c *Client) doRequest(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var lastErr error
	backoff := c.retryConfig.InitialBackoff

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.retryConfig.MaxBackoff {
				backoff = c.retryConfig.MaxBackoff
			}
		}

		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out != nil {
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("failed to decode response: %w", err)
				}
			}
			return nil
		}

		apiErr := parseAPIError(resp.StatusCode, respBody)

		// Retry server errors and rate limits; client errors are final
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = apiErr
			continue
		}
		return apiErr
	}

	return lastErr
}

func parseAPIError(statusCode int, body []byte) *APIError {
	var wrapper struct {
		Error APIError `json:"error"`
	}
	apiErr := &APIError{StatusCode: statusCode, Message: "unexpected response from Stripe"}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Message != "" {
		apiErr.Type = wrapper.Error.Type
		apiErr.Code = wrapper.Error.Code
		apiErr.Message = wrapper.Error.Message
	}
	return apiErr
}
