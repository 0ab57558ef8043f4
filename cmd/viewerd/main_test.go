package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flymap/trackd/internal/metadata"
	"github.com/flymap/trackd/internal/types"
)

func TestLoadTrackBatch(t *testing.T) {
	tracks := []*types.Track{
		{
			Group: 7,
			Index: 0,
			Name:  "pilot",
			Ts:    []int64{1000, 2000},
			Lat:   []float64{45.1, 45.2},
			Lon:   []float64{6.5, 6.6},
			Alt:   []float64{1200, 1210},
		},
		{
			Group: 7,
			Index: 1,
			Name:  "other",
			Ts:    []int64{3000},
			Lat:   []float64{46.0},
			Lon:   []float64{7.0},
			Alt:   []float64{900},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(metadata.EncodeTrackBatch(tracks))
	}))
	defer server.Close()

	got, err := loadTrackBatch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("loadTrackBatch() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(got))
	}
	if got[0].Group != 7 || got[0].Index != 0 || got[0].Name != "pilot" {
		t.Errorf("Unexpected first track: %+v", got[0])
	}
	if len(got[0].Ts) != 2 || got[0].Ts[0] != 1000 {
		t.Errorf("Unexpected timestamps: %v", got[0].Ts)
	}
}

func TestLoadTrackBatch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := loadTrackBatch(context.Background(), server.URL); err == nil {
		t.Error("Expected error on server failure")
	}
}

func TestLoadTrackBatch_Unreachable(t *testing.T) {
	if _, err := loadTrackBatch(context.Background(), "http://127.0.0.1:1/tracks"); err == nil {
		t.Error("Expected error on unreachable server")
	}
}

func TestLoadTrackBatch_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xff, 0xff, 0xff})
	}))
	defer server.Close()

	if _, err := loadTrackBatch(context.Background(), server.URL); err == nil {
		t.Error("Expected error on malformed payload")
	}
}
