package scrapeprovider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rishet11/LeadPilot/internal/core"
)

func TestNewClientValidation(t *testing.T) {
	t.Run("missing base url", func(t *testing.T) {
		_, err := NewClient(Options{Token: "tok"})
		require.Error(t, err)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := NewClient(Options{BaseURL: "https://api.example.com"})
		require.Error(t, err)
	})

	t.Run("trailing slash trimmed", func(t *testing.T) {
		c, err := NewClient(Options{BaseURL: "https://api.example.com/", Token: "tok"})
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com", c.baseURL)
	})
}

func TestRunActor(t *testing.T) {
	var gotPath, gotToken string
	var gotInput map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("token")
		_ = json.NewDecoder(r.Body).Decode(&gotInput)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"title":"Bright Smiles","totalScore":4.7},{"title":"City Dental"}]`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL: server.URL,
		Token:   "secret-token",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)

	items, err := client.RunActor(context.Background(), core.RunActorParams{
		Actor: "compass~crawler-google-places",
		Input: map[string]any{"searchStringsArray": []string{"dentist Austin"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v2/acts/compass~crawler-google-places/run-sync-get-dataset-items", gotPath)
	assert.Equal(t, "secret-token", gotToken)
	assert.Equal(t, []any{"dentist Austin"}, gotInput["searchStringsArray"])

	require.Len(t, items, 2)
	assert.Equal(t, "Bright Smiles", items[0]["title"])
	assert.Equal(t, 4.7, items[0]["totalScore"])
}

func TestRunActorRequiresActor(t *testing.T) {
	client, err := NewClient(Options{BaseURL: "https://api.example.com", Token: "tok"})
	require.NoError(t, err)

	_, err = client.RunActor(context.Background(), core.RunActorParams{Actor: "   "})
	require.Error(t, err)
}

func TestRunActorErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"monthly usage hard limit exceeded"}}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Options{BaseURL: server.URL, Token: "tok"})
	require.NoError(t, err)

	_, err = client.RunActor(context.Background(), core.RunActorParams{Actor: "some~actor"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "some~actor")
	assert.Contains(t, err.Error(), "monthly usage hard limit exceeded")
	assert.NotContains(t, err.Error(), "tok", "token must not leak into errors")
}

func TestRunActorBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"title":"` + strings.Repeat("x", 4096) + `"}]`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL:      server.URL,
		Token:        "tok",
		MaxBodyBytes: 1024,
	})
	require.NoError(t, err)

	_, err = client.RunActor(context.Background(), core.RunActorParams{Actor: "some~actor"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestRunActorMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Options{BaseURL: server.URL, Token: "tok"})
	require.NoError(t, err)

	_, err = client.RunActor(context.Background(), core.RunActorParams{Actor: "some~actor"})
	require.Error(t, err)
}

func TestRunActorContextCancel(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background connection
		// read; otherwise r.Context() is never canceled on client
		// disconnect and Close deadlocks.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Options{BaseURL: server.URL, Token: "tok"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err = client.RunActor(ctx, core.RunActorParams{Actor: "some~actor"})
	require.Error(t, err)
}
