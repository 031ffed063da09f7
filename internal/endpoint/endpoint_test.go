package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gov-monitoring/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestFetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		switch r.URL.Path {
		case "/ok":
			fmt.Fprint(w, `{"proposals":[{"id":"7"}]}`)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"code":5,"message":"not found"}`)
		case "/html":
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `<html>bad gateway</html>`)
		case "/garbage":
			fmt.Fprint(w, `{"proposals":`)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			fmt.Fprint(w, `{}`)
		}
	}))
	defer srv.Close()

	m := metrics.New()
	c := NewClient(srv.Client(), "", m)
	ctx := context.Background()

	doc, err := c.FetchJSON(ctx, srv.URL+"/", "/ok", time.Second)
	require.NoError(t, err)
	props := doc.(map[string]any)["proposals"].([]any)
	require.Equal(t, "7", props[0].(map[string]any)["id"])

	_, err = c.FetchJSON(ctx, srv.URL, "/missing", time.Second)
	require.Equal(t, HTTPError, KindOf(err))
	var f *Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, http.StatusNotFound, f.Status)
	require.Equal(t, json.Number("5"), f.Body.(map[string]any)["code"])

	_, err = c.FetchJSON(ctx, srv.URL, "/html", time.Second)
	require.ErrorAs(t, err, &f)
	require.Equal(t, HTTPError, f.Kind)
	require.Nil(t, f.Body)

	_, err = c.FetchJSON(ctx, srv.URL, "/garbage", time.Second)
	require.Equal(t, MalformedResponse, KindOf(err))

	_, err = c.FetchJSON(ctx, srv.URL, "/slow", 20*time.Millisecond)
	require.Equal(t, EndpointUnreachable, KindOf(err))

	require.Equal(t, 1.0, testutil.ToFloat64(m.EndpointRequests.WithLabelValues("ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.EndpointRequests.WithLabelValues("http_error")))
}

func TestJoinURL(t *testing.T) {
	require.Equal(t, "https://a/b/c", JoinURL("https://a/b/", "/c"))
	require.Equal(t, "https://a/c", JoinURL("https://a", "c"))
	require.Equal(t, "https://a", JoinURL("https://a/", ""))
}

func TestExpandIsEndpointMajor(t *testing.T) {
	got := Expand([]string{"e1", "e2"}, "v1beta1", "v1")
	require.Equal(t, []Candidate{
		{BaseURL: "e1", Version: "v1beta1"},
		{BaseURL: "e1", Version: "v1"},
		{BaseURL: "e2", Version: "v1beta1"},
		{BaseURL: "e2", Version: "v1"},
	}, got)
	require.Equal(t, []Candidate{{BaseURL: "e1"}}, Expand([]string{"e1"}))
}

func TestFirstConclusiveShortCircuits(t *testing.T) {
	cands := Expand([]string{"e1", "e2", "e3", "e4"})
	var called []string
	var failed []string
	res, winner, err := FirstConclusive(context.Background(), cands,
		func(_ context.Context, c Candidate) (string, error) {
			called = append(called, c.BaseURL)
			if c.BaseURL == "e3" {
				return "answer from " + c.BaseURL, nil
			}
			return "", errors.New("down")
		},
		func(c Candidate, _ error) { failed = append(failed, c.BaseURL) },
	)
	require.NoError(t, err)
	require.Equal(t, "answer from e3", res)
	require.Equal(t, "e3", winner.BaseURL)
	require.Equal(t, []string{"e1", "e2", "e3"}, called)
	require.Equal(t, []string{"e1", "e2"}, failed)
}

func TestFirstConclusiveExhausted(t *testing.T) {
	cands := Expand([]string{"e1", "e2"})
	_, _, err := FirstConclusive(context.Background(), cands,
		func(_ context.Context, c Candidate) (int, error) {
			if c.BaseURL == "e1" {
				return 0, ErrEmptyResult
			}
			return 0, &Failure{Kind: HTTPError, Status: 500}
		}, nil)
	require.Equal(t, AllSourcesExhausted, KindOf(err))
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestFirstConclusiveStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, _, err := FirstConclusive(ctx, Expand([]string{"e1", "e2"}),
		func(_ context.Context, _ Candidate) (int, error) {
			calls++
			cancel()
			return 0, errors.New("down")
		}, nil)
	require.Equal(t, 1, calls)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFirstConclusiveNoCandidates(t *testing.T) {
	_, _, err := FirstConclusive(context.Background(), nil,
		func(_ context.Context, _ Candidate) (int, error) { return 1, nil }, nil)
	require.Equal(t, AllSourcesExhausted, KindOf(err))
}
