package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
	"data": [
		{
			"job_id": "abc123",
			"job_title": "Software Engineer",
			"employer_name": "Acme Corp",
			"job_city": "Austin",
			"job_country": "US",
			"job_apply_link": "https://jobs.example.com/abc123/apply",
			"job_description": "We are   looking for an engineer.\n\nApply now."
		},
		{
			"job_id": "no-link",
			"job_title": "Ghost Posting",
			"employer_name": "Nowhere Inc"
		}
	]
}`

// testClient points a Client at a local httptest server.
func testClient(t *testing.T, srv *httptest.Server, retries uint64) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	c := NewClient("test-key", &Options{
		Host:        u.Host,
		Timeout:     5 * time.Second,
		MaxRetries:  retries,
		BackoffBase: time.Millisecond,
	})
	// The JSearch host is HTTPS; tests talk plain HTTP to the local server.
	c.http = srv.Client()
	c.http.Transport = rewriteTransport{base: srv.Client().Transport}
	return c
}

type rewriteTransport struct{ base http.RoundTripper }

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	return rt.base.RoundTrip(req)
}

func TestSearchNormalizesListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-RapidAPI-Key"))
		assert.Contains(t, r.URL.Query().Get("query"), "Software Engineer in Remote")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	listings, err := testClient(t, srv, 0).Search(context.Background(), "Software Engineer", "Remote")
	require.NoError(t, err)

	// The posting without an apply link is dropped.
	require.Len(t, listings, 1)
	l := listings[0]
	assert.Equal(t, Source, l.Source)
	assert.Equal(t, "abc123", l.ExternalID)
	assert.Equal(t, "Acme Corp", l.Company)
	assert.Equal(t, "Austin, US", l.Location)
	assert.Equal(t, "We are looking for an engineer. Apply now.", l.Snippet)
}

func TestSearchEmptyTitleRejected(t *testing.T) {
	c := NewClient("key", nil)
	_, err := c.Search(context.Background(), "   ", "Remote")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSearchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	listings, err := testClient(t, srv, 5).Search(context.Background(), "Engineer", "")
	require.NoError(t, err)
	assert.Len(t, listings, 1)
	assert.EqualValues(t, 3, calls.Load())
}

func TestSearchExhaustedRetriesSurfaceCollectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(t, srv, 2).Search(context.Background(), "Engineer", "")
	var ce *CollectionError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Retryable)
}

func TestSearchMalformedResponseNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := testClient(t, srv, 5).Search(context.Background(), "Engineer", "")
	var ce *CollectionError
	require.ErrorAs(t, err, &ce)
	assert.False(t, ce.Retryable)
	assert.EqualValues(t, 1, calls.Load(), "malformed payloads must not be retried")
}

func TestSearchClientErrorNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(t, srv, 3).Search(context.Background(), "Engineer", "")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(&CollectionError{Message: "x"}))
	assert.True(t, IsRetryable(&CollectionError{Message: "x", Retryable: true}))
}

func TestSnippetBounded(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "lorem ipsum "
	}
	s := snippet(long)
	assert.LessOrEqual(t, len(s), SnippetLength+len("…"))
}

func TestMockListings(t *testing.T) {
	listings := MockListings("Software Engineer", "")
	assert.Len(t, listings, 2)
	for _, l := range listings {
		assert.NotEmpty(t, l.URL)
		assert.Equal(t, "Remote", l.Location)
	}
}
