package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchAudioPollsUntilReady(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var audioURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dl":
			n := calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			if n < 3 {
				json.NewEncoder(w).Encode(audioConvResponse{Status: "processing"})
				return
			}
			json.NewEncoder(w).Encode(audioConvResponse{Status: "ok", Link: audioURL})
		case "/file.mp3":
			w.Write([]byte("mp3-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	audioURL = srv.URL + "/file.mp3"

	p := NewAudioConversionProvider(testTracer, "test-key")
	p.client.SetBaseURL(srv.URL)
	p.baseDelay = time.Millisecond

	dir := t.TempDir()
	path, err := p.FetchAudio(context.Background(), "abc123", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(dir, "abc123.mp3") {
		t.Fatalf("unexpected path: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "mp3-bytes" {
		t.Fatalf("file contents = %q, err = %v", data, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 conversion calls, got %d", calls.Load())
	}
}

func TestFetchAudioFailStatusAborts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(audioConvResponse{Status: "fail", Msg: "video unavailable"})
	}))
	defer srv.Close()

	p := NewAudioConversionProvider(testTracer, "test-key")
	p.client.SetBaseURL(srv.URL)
	p.baseDelay = time.Millisecond

	if _, err := p.FetchAudio(context.Background(), "abc123", t.TempDir()); err == nil {
		t.Fatal("expected error on fail status")
	}
}

func TestFetchAudioBoundedPolling(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(audioConvResponse{Status: "processing"})
	}))
	defer srv.Close()

	p := NewAudioConversionProvider(testTracer, "test-key")
	p.client.SetBaseURL(srv.URL)
	p.baseDelay = time.Millisecond
	p.maxAttempts = 4

	if _, err := p.FetchAudio(context.Background(), "abc123", t.TempDir()); err == nil {
		t.Fatal("expected error after max attempts exhausted")
	}
	if calls.Load() != 4 {
		t.Fatalf("expected exactly 4 attempts, got %d", calls.Load())
	}
}
