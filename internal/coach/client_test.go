package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdviseReturnsGeneratedText(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Lean into your communication strength."}]}}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", false)
	advice := c.Advise(context.Background(), map[string]float64{"Effective Communication": 10, "Negotiation & Persuasion": 2.5})

	assert.Equal(t, "Lean into your communication strength.", advice)

	// json.Marshal escapes & on the wire, so inspect the decoded prompt.
	var sent generateRequest
	require.NoError(t, json.Unmarshal([]byte(gotBody), &sent))
	require.NotEmpty(t, sent.Contents)
	require.NotEmpty(t, sent.Contents[0].Parts)
	prompt := sent.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Effective Communication: 10")
	assert.Contains(t, prompt, "Negotiation & Persuasion: 2.5")
}

func TestAdviseFallsBackOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", false)
	assert.Equal(t, FallbackAdvice, c.Advise(context.Background(), map[string]float64{"EC": 1}))
}

func TestAdviseFallsBackOnEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", false)
	assert.Equal(t, FallbackAdvice, c.Advise(context.Background(), map[string]float64{"EC": 1}))
}

func TestAdviseFallsBackWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close()

	c := New(srv.URL, "test-key", false)
	assert.Equal(t, FallbackAdvice, c.Advise(context.Background(), map[string]float64{"EC": 1}))
}

func TestAdviseSkipMakesNoCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("skip mode must not reach the network")
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", true)
	assert.Equal(t, FallbackAdvice, c.Advise(context.Background(), map[string]float64{"EC": 1}))
}

func TestAdviseWithoutKeyFallsBack(t *testing.T) {
	c := New("http://unused", "", false)
	require.NotNil(t, c)
	assert.Equal(t, FallbackAdvice, c.Advise(context.Background(), nil))
}
