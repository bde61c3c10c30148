package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ChatWidget/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const okResponse = `{
  "id": "resp-1",
  "object": "response",
  "created_at": 1700000000,
  "status": "completed",
  "model": "gpt-4o-mini",
  "output": [{
    "type": "message",
    "id": "msg_1",
    "status": "completed",
    "role": "assistant",
    "content": [{"type": "output_text", "text": "Hi there", "annotations": []}]
  }]
}`

// fakeResponsesAPI records decoded request bodies and answers with status/body.
func fakeResponsesAPI(t *testing.T, status int, body string, seen *[]map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var decoded map[string]any
		assert.NoError(t, json.Unmarshal(raw, &decoded))
		if seen != nil {
			*seen = append(*seen, decoded)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *ResponsesClient {
	oc := NewOpenAI(config.AIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	return NewResponsesClient(oc, zap.NewNop().Sugar())
}

func TestResponsesClient_Generate_FirstTurn(t *testing.T) {
	var seen []map[string]any
	srv := fakeResponsesAPI(t, http.StatusOK, okResponse, &seen)

	gen, err := newTestClient(srv).Generate(context.Background(), GenerateRequest{
		Model:           "gpt-4o-mini",
		Input:           "Hello",
		Temperature:     0.2,
		MaxOutputTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, Generation{ResponseID: "resp-1", Text: "Hi there"}, gen)

	require.Len(t, seen, 1)
	assert.Equal(t, "gpt-4o-mini", seen[0]["model"])
	assert.Equal(t, "Hello", seen[0]["input"])
	assert.InDelta(t, 0.2, seen[0]["temperature"], 1e-9)
	assert.EqualValues(t, 100, seen[0]["max_output_tokens"])
	assert.NotContains(t, seen[0], "previous_response_id")
}

func TestResponsesClient_Generate_Continuation(t *testing.T) {
	var seen []map[string]any
	srv := fakeResponsesAPI(t, http.StatusOK, okResponse, &seen)

	_, err := newTestClient(srv).Generate(context.Background(), GenerateRequest{
		Model:              "gpt-4o-mini",
		Input:              "How are you?",
		Temperature:        0.2,
		MaxOutputTokens:    100,
		PreviousResponseID: "resp-1",
	})
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, "How are you?", seen[0]["input"])
	assert.Equal(t, "resp-1", seen[0]["previous_response_id"])
}

func TestResponsesClient_Generate_ErrorStatus(t *testing.T) {
	var seen []map[string]any
	srv := fakeResponsesAPI(t, http.StatusInternalServerError,
		`{"error": {"message": "boom", "type": "server_error"}}`, &seen)

	gen, err := newTestClient(srv).Generate(context.Background(), GenerateRequest{
		Model: "gpt-4o-mini", Input: "Hello", Temperature: 0.2, MaxOutputTokens: 100,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Zero(t, gen)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusInternalServerError, upErr.StatusCode)

	// Retries are disabled.
	assert.Len(t, seen, 1)
}

func TestResponsesClient_Generate_MissingID(t *testing.T) {
	srv := fakeResponsesAPI(t, http.StatusOK, `{"object": "response", "status": "completed", "output": []}`, nil)

	_, err := newTestClient(srv).Generate(context.Background(), GenerateRequest{
		Model: "gpt-4o-mini", Input: "Hello", Temperature: 0.2, MaxOutputTokens: 100,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestResponsesClient_Generate_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := newTestClient(srv)
	srv.Close()

	_, err := client.Generate(context.Background(), GenerateRequest{
		Model: "gpt-4o-mini", Input: "Hello", Temperature: 0.2, MaxOutputTokens: 100,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Zero(t, upErr.StatusCode)
}

func TestResponsesClient_Generate_NilClient(t *testing.T) {
	c := NewResponsesClient(nil, zap.NewNop().Sugar())
	_, err := c.Generate(context.Background(), GenerateRequest{Input: "Hello"})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestStubClient_Generate(t *testing.T) {
	c := NewStubClient()

	first, err := c.Generate(context.Background(), GenerateRequest{Input: "Hello"})
	require.NoError(t, err)
	second, err := c.Generate(context.Background(), GenerateRequest{Input: "Hello", PreviousResponseID: first.ResponseID})
	require.NoError(t, err)

	assert.Contains(t, first.Text, "Hello")
	assert.NotEmpty(t, first.ResponseID)
	assert.NotEqual(t, first.ResponseID, second.ResponseID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Generate(ctx, GenerateRequest{Input: "Hello"})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpstreamError_Message(t *testing.T) {
	err := &UpstreamError{StatusCode: 429, Err: errors.New("rate limited")}
	assert.Equal(t, "upstream generation failure: status 429: rate limited", err.Error())

	err = &UpstreamError{Err: errors.New("dial tcp")}
	assert.Equal(t, "upstream generation failure: dial tcp", err.Error())
}
