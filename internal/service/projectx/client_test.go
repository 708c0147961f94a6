package projectx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	drepo "LevelCast/internal/domain/repository"
	apphttp "LevelCast/pkg/http"
)

func newTestClient(t *testing.T, handler http.Handler) (drepo.BarFeed, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	feed := New(Config{
		BaseURL:    srv.URL,
		Username:   "user",
		APIKey:     "key",
		ContractID: "CON.F.US.MNQ.U25",
	}, apphttp.NewClient(apphttp.WithTimeout(5*time.Second)), time.UTC, nil)
	return feed, srv
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestRetrieveBarsRefreshesTokenOn401(t *testing.T) {
	var logins, retrieves int32

	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&logins, 1)
		writeJSON(w, loginResponse{Success: true, Token: "tok"})
	})
	mux.HandleFunc(retrieveBarsPath, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&retrieves, 1) == 1 {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		writeJSON(w, retrieveBarsResponse{Success: true, Bars: []apiBar{
			{T: "2025-06-03T10:00:00Z", O: 100, H: 101, L: 99, C: 100.5, V: 10},
		}})
	})

	feed, _ := newTestClient(t, mux)
	bars, err := feed.RetrieveBars(context.Background(), drepo.RetrieveParams{
		Unit: drepo.TF1m, Lookback: time.Hour, Limit: 10,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("bars %d, want 1", len(bars))
	}
	if got := atomic.LoadInt32(&retrieves); got != 2 {
		t.Fatalf("retrieve calls %d, want 2", got)
	}
	if got := atomic.LoadInt32(&logins); got != 2 {
		t.Fatalf("login calls %d, want a re-auth after the 401", got)
	}
}

func TestRetrieveBarsNoRetryOnServerError(t *testing.T) {
	var logins, retrieves int32

	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&logins, 1)
		writeJSON(w, loginResponse{Success: true, Token: "tok"})
	})
	mux.HandleFunc(retrieveBarsPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&retrieves, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	feed, _ := newTestClient(t, mux)
	_, err := feed.RetrieveBars(context.Background(), drepo.RetrieveParams{
		Unit: drepo.TF1m, Lookback: time.Hour, Limit: 10,
	})
	if err == nil {
		t.Fatalf("expected an error on 500")
	}
	if got := atomic.LoadInt32(&retrieves); got != 1 {
		t.Fatalf("retrieve calls %d, want 1: a server error must not trigger a retry", got)
	}
	if got := atomic.LoadInt32(&logins); got != 1 {
		t.Fatalf("login calls %d, want 1", got)
	}
}

func TestRetrieveBarsNoRetryOnCanceledContext(t *testing.T) {
	var retrieves int32

	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, loginResponse{Success: true, Token: "tok"})
	})
	mux.HandleFunc(retrieveBarsPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&retrieves, 1)
		http.Error(w, "late", http.StatusInternalServerError)
	})

	feed, _ := newTestClient(t, mux)
	// Warm the token so cancellation hits the retrieve call, not the login.
	if err := feed.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := feed.RetrieveBars(ctx, drepo.RetrieveParams{
		Unit: drepo.TF1m, Lookback: time.Hour, Limit: 10,
	})
	if err == nil {
		t.Fatalf("expected an error on canceled context")
	}
	if got := atomic.LoadInt32(&retrieves); got != 0 {
		t.Fatalf("retrieve reached the gateway %d times on a canceled context", got)
	}
}
