package tavily

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchNews(t *testing.T) {
	var got SearchRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)
		_, _ = io.WriteString(w, `{"query":"q","results":[{"title":"a"},{"title":"b"},{"title":"c"}]}`)
	}))
	defer srv.Close()

	c := NewClient("tvly-key", srv.URL, time.Second)
	items, err := c.SearchNews(context.Background(), "MSFT stock news latest developments", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0]["title"])

	assert.Equal(t, "Bearer tvly-key", auth)
	assert.Equal(t, "news", got.Topic)
	assert.Equal(t, 2, got.MaxResults)
	assert.Equal(t, "basic", got.SearchDepth)
}

func TestSearchAnalysisPassThrough(t *testing.T) {
	const fixture = `{"query":"q","answer":"","results":[{"title":"x","score":0.91}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, fixture)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, time.Second)
	res, err := c.SearchAnalysis(context.Background(), "q")
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, fixture, string(data))
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, time.Second)
	_, err := c.SearchNews(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
