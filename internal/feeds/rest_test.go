package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRestSourceQuotes(t *testing.T) {
	var gotPath, gotSymbols string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSymbols = r.URL.Query().Get("symbols")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prices":[
			{"symbol":"KNC","price":"0.00415","timestamp":1724700000},
			{"symbol":"OMG","price":"0.00101","timestamp":1724700001}
		]}`))
	}))
	defer srv.Close()

	source := NewRestSource(srv.URL, 5*time.Second, 0)
	quotes, err := source.Quotes(context.Background(), []string{"KNC", "OMG", "UNKNOWN"})
	require.NoError(t, err)

	require.Equal(t, "/v1/prices", gotPath)
	require.Equal(t, "KNC,OMG,UNKNOWN", gotSymbols)

	require.Len(t, quotes, 2)
	require.True(t, quotes["KNC"].Price.Equal(decimal.RequireFromString("0.00415")))
	require.Equal(t, int64(1724700000), quotes["KNC"].Timestamp.Unix())
	_, ok := quotes["UNKNOWN"]
	require.False(t, ok, "unknown symbols are absent, not zero")
}

func TestRestSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	source := NewRestSource(srv.URL, 5*time.Second, 0)
	_, err := source.Quotes(context.Background(), []string{"KNC"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestRestSourceBadPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prices":[{"symbol":"KNC","price":"not-a-number","timestamp":0}]}`))
	}))
	defer srv.Close()

	source := NewRestSource(srv.URL, 5*time.Second, 0)
	_, err := source.Quotes(context.Background(), []string{"KNC"})
	require.Error(t, err)
}

func TestRestSourceNoSymbols(t *testing.T) {
	source := NewRestSource("http://127.0.0.1:1", time.Second, 0)
	quotes, err := source.Quotes(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, quotes, "no symbols means no request")
}
