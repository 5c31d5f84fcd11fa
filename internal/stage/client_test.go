package stage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPClientCreateStage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method, "expected POST request")
		assert.Equal(t, "/v1/stages", r.URL.Path, "expected create stage path")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Stage{
			Arn: "arn:aws:ivs:us-east-1:123456789012:stage/abc",
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	stage, err := client.CreateStage(context.Background())
	assert.NoError(t, err, "expected no error creating stage")
	assert.Equal(t, "arn:aws:ivs:us-east-1:123456789012:stage/abc", stage.Arn, "expected stage arn to be decoded")
}

func TestHTTPClientListParticipants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/participants", r.URL.Path, "expected list participants path")
		assert.Equal(t, "arn", r.URL.Query().Get("stageArn"), "expected stage arn query param")
		assert.Equal(t, "sess", r.URL.Query().Get("sessionId"), "expected session id query param")
		assert.Equal(t, string(ParticipantStateConnected), r.URL.Query().Get("state"), "expected state query param")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"participants": []Participant{
				{ParticipantId: "p1", State: ParticipantStateConnected},
			},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	participants, err := client.ListParticipants(context.Background(), "arn", "sess", ParticipantStateConnected)
	assert.NoError(t, err, "expected no error listing participants")
	assert.Len(t, participants, 1, "expected one participant")
	assert.Equal(t, "p1", participants[0].ParticipantId, "expected participant id to be decoded")
}

func TestHTTPClientDeleteStage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method, "expected DELETE request")
		assert.Equal(t, "arn", r.URL.Query().Get("arn"), "expected arn query param")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	assert.NoError(t, client.DeleteStage(context.Background(), "arn"), "expected no error deleting stage")
}

func TestHTTPClientErrorTaxonomy(t *testing.T) {
	tcases := []struct {
		name        string
		statusCode  int
		expectedErr error
	}{
		{
			name:        "throttled request is rate limited",
			statusCode:  http.StatusTooManyRequests,
			expectedErr: ErrRateLimited,
		},
		{
			name:        "server error is unavailable",
			statusCode:  http.StatusInternalServerError,
			expectedErr: ErrUnavailable,
		},
		{
			name:        "bad gateway is unavailable",
			statusCode:  http.StatusBadGateway,
			expectedErr: ErrUnavailable,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.statusCode)
			}))
			defer srv.Close()

			client := NewHTTPClient(srv.URL)
			_, err := client.ListStages(context.Background())
			assert.ErrorIs(t, err, tc.expectedErr, "expected error for status %d", tc.statusCode)
		})
	}
}

func TestHTTPClientClientErrorIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	_, err := client.CreateStage(context.Background())
	assert.Error(t, err, "expected error for 400 response")
	assert.NotErrorIs(t, err, ErrRateLimited, "expected a client error not to be rate limited")
	assert.NotErrorIs(t, err, ErrUnavailable, "expected a client error not to be unavailable")
}

func TestHTTPClientTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewHTTPClient(srv.URL)
	_, err := client.ListStages(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable, "expected transport failure to map to unavailable")
}
