package stage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrRateLimited is the provider's throttling signal. It is the only
	// error the retry policy will retry.
	ErrRateLimited = errors.New("stage api rate limited")
	// ErrUnavailable covers network failures and provider 5xx responses.
	ErrUnavailable = errors.New("stage api unavailable")
)

// Client is the media-session provider API consumed by the core. Live
// membership truth lives behind this interface.
type Client interface {
	CreateStage(ctx context.Context) (Stage, error)
	CreateParticipantToken(ctx context.Context, stageArn string, userData UserData) (ParticipantToken, error)
	ListParticipants(ctx context.Context, stageArn, sessionId string, state ParticipantState) ([]Participant, error)
	ListStages(ctx context.Context) ([]StageSummary, error)
	DeleteStage(ctx context.Context, stageArn string) error
}

type HTTPClient struct {
	http *resty.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPClient{http: client}
}

// checkResponse maps provider failures onto the error taxonomy. A 429 is
// retryable, a 5xx or transport error means the provider is unreachable,
// anything else is surfaced as-is.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode() >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	case resp.IsError():
		return fmt.Errorf("stage api: status %d: %s", resp.StatusCode(), resp.Body())
	}

	return nil
}

func (c *HTTPClient) CreateStage(ctx context.Context) (Stage, error) {
	var stage Stage
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{}).
		SetResult(&stage).
		Post("/v1/stages")

	if err := checkResponse(resp, err); err != nil {
		return Stage{}, fmt.Errorf("create stage: %w", err)
	}

	return stage, nil
}

func (c *HTTPClient) CreateParticipantToken(ctx context.Context, stageArn string, userData UserData) (ParticipantToken, error) {
	var token ParticipantToken
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"stageArn": stageArn,
			"userData": userData,
		}).
		SetResult(&token).
		Post("/v1/participant-tokens")

	if err := checkResponse(resp, err); err != nil {
		return ParticipantToken{}, fmt.Errorf("create participant token: %w", err)
	}

	return token, nil
}

func (c *HTTPClient) ListParticipants(ctx context.Context, stageArn, sessionId string, state ParticipantState) ([]Participant, error) {
	var result struct {
		Participants []Participant `json:"participants"`
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"stageArn":  stageArn,
			"sessionId": sessionId,
			"state":     string(state),
		}).
		SetResult(&result).
		Get("/v1/participants")

	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	return result.Participants, nil
}

func (c *HTTPClient) ListStages(ctx context.Context) ([]StageSummary, error) {
	var result struct {
		Stages []StageSummary `json:"stages"`
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/v1/stages")

	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}

	return result.Stages, nil
}

func (c *HTTPClient) DeleteStage(ctx context.Context, stageArn string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("arn", stageArn).
		Delete("/v1/stages")

	if err := checkResponse(resp, err); err != nil {
		return fmt.Errorf("delete stage: %w", err)
	}

	return nil
}
