// Package classifier talks to the external harmful-content prediction service.
//
// The wire contract is a POST of {"message": "..."} answered by
// {"prediction": 0} (safe) or {"prediction": 1} (harmful). Any other answer is
// reported as ErrMalformedResponse so callers can fail closed.
package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// Verdict is the classifier's binary answer
type Verdict int

const (
	VerdictSafe    Verdict = 0
	VerdictHarmful Verdict = 1
)

func (v Verdict) String() string {
	switch v {
	case VerdictSafe:
		return "safe"
	case VerdictHarmful:
		return "harmful"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

var (
	// ErrUnavailable covers transport failures, timeouts and non-2xx answers
	ErrUnavailable = errors.New("classifier unavailable")
	// ErrMalformedResponse is returned when a 2xx answer does not carry a valid verdict
	ErrMalformedResponse = errors.New("classifier returned a malformed response")
)

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 64 << 10

type predictRequest struct {
	Message string `json:"message"`
}

type predictResponse struct {
	Prediction *int `json:"prediction"`
}

// Client is an HTTP client for the prediction endpoint
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client for the given /predict URL. timeout bounds each call.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Classify sends text to the prediction service and returns its verdict.
func (c *Client) Classify(ctx context.Context, text string) (Verdict, error) {
	body, err := json.Marshal(predictRequest{Message: text})
	if err != nil {
		return 0, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	return ParseVerdict(raw)
}

// ParseVerdict validates a prediction response body.
func ParseVerdict(raw []byte) (Verdict, error) {
	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Prediction == nil {
		return 0, fmt.Errorf("%w: missing prediction", ErrMalformedResponse)
	}

	switch v := Verdict(*out.Prediction); v {
	case VerdictSafe, VerdictHarmful:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: unexpected prediction %d", ErrMalformedResponse, *out.Prediction)
	}
}
