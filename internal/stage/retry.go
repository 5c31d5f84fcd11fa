package stage

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// A factor of 1.5707 keeps 5 attempts inside 15s (random = 1) to 30s
// (random = 2): sum of 1000*1.5707^k for k in 0..4 is roughly 15000ms.
const (
	defaultRetryAttempts = 5
	defaultRetryFactor   = 1.5707
	defaultRetryBaseWait = time.Second
)

// RetryingClient wraps a Client with bounded exponential backoff and full
// jitter. Only ErrRateLimited is retried; every other error propagates
// immediately so real failures are not masked as transient ones.
type RetryingClient struct {
	client   Client
	attempts int
	factor   float64
	baseWait time.Duration
}

func NewRetryingClient(client Client) *RetryingClient {
	return &RetryingClient{
		client:   client,
		attempts: defaultRetryAttempts,
		factor:   defaultRetryFactor,
		baseWait: defaultRetryBaseWait,
	}
}

func (c *RetryingClient) retry(ctx context.Context, fn func() error) error {
	wait := c.baseWait

	var err error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if err = fn(); err == nil || !errors.Is(err, ErrRateLimited) {
			return err
		}

		if attempt == c.attempts-1 {
			break
		}

		// full jitter: wait between 1x and 2x the current backoff
		sleep := time.Duration((1 + rand.Float64()) * float64(wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		wait = time.Duration(float64(wait) * c.factor)
	}

	return err
}

func (c *RetryingClient) CreateStage(ctx context.Context) (Stage, error) {
	var stage Stage
	err := c.retry(ctx, func() error {
		var err error
		stage, err = c.client.CreateStage(ctx)
		return err
	})
	return stage, err
}

func (c *RetryingClient) CreateParticipantToken(ctx context.Context, stageArn string, userData UserData) (ParticipantToken, error) {
	var token ParticipantToken
	err := c.retry(ctx, func() error {
		var err error
		token, err = c.client.CreateParticipantToken(ctx, stageArn, userData)
		return err
	})
	return token, err
}

func (c *RetryingClient) ListParticipants(ctx context.Context, stageArn, sessionId string, state ParticipantState) ([]Participant, error) {
	var participants []Participant
	err := c.retry(ctx, func() error {
		var err error
		participants, err = c.client.ListParticipants(ctx, stageArn, sessionId, state)
		return err
	})
	return participants, err
}

func (c *RetryingClient) ListStages(ctx context.Context) ([]StageSummary, error) {
	var stages []StageSummary
	err := c.retry(ctx, func() error {
		var err error
		stages, err = c.client.ListStages(ctx)
		return err
	})
	return stages, err
}

func (c *RetryingClient) DeleteStage(ctx context.Context, stageArn string) error {
	return c.retry(ctx, func() error {
		return c.client.DeleteStage(ctx, stageArn)
	})
}
