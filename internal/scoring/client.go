// Package scoring calls the external photo-comparison service used by
// medication verification. The service compares a candidate photo
// against a reference image and returns similarity scores.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"caresignal/internal/adherence"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

// Client compares a candidate photo against a reference image.
type Client interface {
	Compare(ctx context.Context, req CompareRequest) (*CompareResult, error)
}

type CompareRequest struct {
	SubjectID    id.SubjectID
	MedicineID   id.MedicineID
	ReferenceURL string
	CandidateURL string
}

// CompareResult carries raw scores from the comparison service.
// Similarity and Match are always present; Text and Final are set only
// when the service produced them.
type CompareResult struct {
	Similarity float64
	Text       *float64
	Final      *float64
	Match      bool
}

// HTTPClient talks to the comparison service over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

type Option func(*HTTPClient)

func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = client
	}
}

func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("scoring base URL is required")
	}
	c := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type compareRequestBody struct {
	SubjectID    string `json:"subjectId"`
	MedicineID   string `json:"medicineId"`
	ReferenceURL string `json:"referenceUrl"`
	CandidateURL string `json:"candidateUrl"`
}

type compareResponseBody struct {
	Similarity float64  `json:"similarity"`
	TextScore  *float64 `json:"textScore"`
	FinalScore *float64 `json:"finalScore"`
	Match      bool     `json:"match"`
}

func (c *HTTPClient) Compare(ctx context.Context, req CompareRequest) (*CompareResult, error) {
	body, err := json.Marshal(compareRequestBody{
		SubjectID:    req.SubjectID.String(),
		MedicineID:   req.MedicineID.String(),
		ReferenceURL: req.ReferenceURL,
		CandidateURL: req.CandidateURL,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode compare request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compare", bytes.NewReader(body))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build compare request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "comparison service timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "comparison service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, dErrors.Newf(dErrors.CodeUnavailable, "comparison service returned status %d", resp.StatusCode)
	}

	var parsed compareResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "comparison service returned malformed response")
	}

	result := &CompareResult{
		Similarity: adherence.NormalizeScore(parsed.Similarity),
		Match:      parsed.Match,
	}
	if parsed.TextScore != nil {
		text := adherence.NormalizeScore(*parsed.TextScore)
		result.Text = &text
	}
	if parsed.FinalScore != nil {
		final := adherence.NormalizeScore(*parsed.FinalScore)
		result.Final = &final
	}
	return result, nil
}

func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) {
		return timeoutErr.Timeout()
	}
	return false
}

var _ Client = (*HTTPClient)(nil)
