package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

func TestResetRecreatesCollectionWithEuclidDistance(t *testing.T) {
	var deleted, created int32
	var createBody map[string]map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/collections/parts":
			atomic.AddInt32(&deleted, 1)
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/parts":
			atomic.AddInt32(&created, 1)
			if err := json.NewDecoder(r.Body).Decode(&createBody); err != nil {
				t.Errorf("decode create body: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/parts/points":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "parts")
	if err := client.Reset(context.Background(), 2); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := client.Add(context.Background(), [][]float32{{0.1, 0.2}, {0.3, 0.4}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if deleted != 1 || created != 1 {
		t.Fatalf("expected one drop and one create, got %d/%d", deleted, created)
	}
	if createBody["vectors"]["distance"] != "Euclid" {
		t.Fatalf("expected Euclid distance, got %v", createBody["vectors"])
	}
}

func TestAddAssignsSequentialPositions(t *testing.T) {
	var ids []float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/parts":
			w.WriteHeader(http.StatusConflict)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/parts/points":
			var body struct {
				Points []struct {
					ID float64 `json:"id"`
				} `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode upsert body: %v", err)
			}
			for _, p := range body.Points {
				ids = append(ids, p.ID)
			}
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "parts")
	if err := client.Add(context.Background(), [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("first Add() error = %v", err)
	}
	if err := client.Add(context.Background(), [][]float32{{1, 1}}); err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	if len(ids) != 3 || ids[0] != 0 || ids[2] != 2 {
		t.Fatalf("unexpected point ids: %v", ids)
	}
}

func TestSearchSquaresDistanceAndPads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/parts/points/search" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"result":[{"id":2,"score":0.5},{"id":0,"score":2}]}`))
	}))
	defer server.Close()

	neighbors, err := New(server.URL, "parts").Search(context.Background(), []float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(neighbors) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(neighbors))
	}
	if neighbors[0].Position != 2 || neighbors[0].Distance != 0.25 || neighbors[1].Distance != 4 {
		t.Fatalf("unexpected neighbors: %+v", neighbors)
	}
	if neighbors[2].Position != domain.NoMatchPosition {
		t.Fatalf("expected padding slot, got %+v", neighbors[2])
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/parts" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	err := New(server.URL, "parts").Add(context.Background(), [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
