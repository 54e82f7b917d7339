package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"temp_c":21.5,"wind_kph":11.0,"condition":{"text":"Partly cloudy"}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	cond, err := c.Fetch(context.Background(), "Oslo")
	if err != nil {
		t.Fatalf("Fetch returned an error: %v", err)
	}

	if !cond.TemperatureC.Equal(decimal.NewFromFloat(21.5)) {
		t.Errorf("expected temp 21.5, got %s", cond.TemperatureC)
	}
	if !cond.WindSpeedKPH.Equal(decimal.NewFromFloat(11.0)) {
		t.Errorf("expected wind 11.0, got %s", cond.WindSpeedKPH)
	}
	if cond.Summary != "Partly cloudy" {
		t.Errorf("expected summary %q, got %q", "Partly cloudy", cond.Summary)
	}
	if cond.Location != "Oslo" {
		t.Errorf("expected location %q, got %q", "Oslo", cond.Location)
	}
}

func TestClient_Fetch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	if _, err := c.Fetch(context.Background(), "Oslo"); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
