// Package forecast provides a client for the external AI prediction
// service. Forecasts are a separate capability reached over HTTP; they
// never participate in order processing.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/util"
)

var (
	// ErrInvalidHorizon reports a non-positive horizon; a caller error.
	ErrInvalidHorizon = errors.New("horizon days must be positive")

	// ErrUnavailable reports that the prediction service could not be
	// reached or answered with a failure; the boundary maps it to 502.
	ErrUnavailable = errors.New("prediction service unavailable")
)

// Prediction is the forecast for one security.
type Prediction struct {
	ISIN         string          `json:"isin"`
	SecurityName string          `json:"security_name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Predictions  []Point         `json:"predictions"`
	Signal       string          `json:"signal"`
	Confidence   decimal.Decimal `json:"confidence"`
	Trend        string          `json:"trend"`
	AISummary    string          `json:"ai_summary"`
}

// Point is a single predicted price with its confidence band.
type Point struct {
	Date            string          `json:"date"`
	PredictedPrice  decimal.Decimal `json:"predicted_price"`
	ConfidenceLower decimal.Decimal `json:"confidence_lower"`
	ConfidenceUpper decimal.Decimal `json:"confidence_upper"`
}

// Client fetches predictions from the AI service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
}

// NewClient creates a forecast client for the service at baseURL.
// Transport failures are retried up to attempts times with backoff.
func NewClient(baseURL string, timeout time.Duration, attempts int) *Client {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   attempts,
	}
}

// Fetch returns the prediction for an ISIN over the given horizon.
func (c *Client) Fetch(ctx context.Context, isin string, horizonDays int) (*Prediction, error) {
	if horizonDays <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizonDays)
	}

	u := fmt.Sprintf("%s/predict/%s?horizon_days=%d", c.baseURL, url.PathEscape(isin), horizonDays)

	var prediction *Prediction
	err := util.Retry(ctx, c.attempts, 200*time.Millisecond, func() error {
		p, err := c.fetchOnce(ctx, u)
		if err != nil {
			return err
		}
		prediction = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prediction, nil
}

func (c *Client) fetchOnce(ctx context.Context, u string) (*Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: service responded with status %d", ErrUnavailable, resp.StatusCode)
	}

	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return &p, nil
}
