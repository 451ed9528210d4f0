package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_GetRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0)
	_, err := client.Get(context.Background(), "/", nil)
	if err != nil {
		t.Fatalf("Request failed after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestClient_MutationsAreNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0)

	if _, err := client.Post(context.Background(), "/", nil, map[string]string{"a": "b"}); err == nil {
		t.Fatal("Expected error from 500 response")
	}
	if attempts != 1 {
		t.Errorf("POST should be issued exactly once, got %d attempts", attempts)
	}

	attempts = 0
	if _, err := client.Patch(context.Background(), "/x/accept", nil); err == nil {
		t.Fatal("Expected error from 500 response")
	}
	if attempts != 1 {
		t.Errorf("PATCH should be issued exactly once, got %d attempts", attempts)
	}
}

func TestClient_APIErrorCarriesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"listing already cancelled"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0)
	_, err := client.Delete(context.Background(), "/listing/abc", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", apiErr.StatusCode)
	}
	if string(apiErr.Body) != `{"message":"listing already cancelled"}` {
		t.Errorf("Unexpected body: %s", apiErr.Body)
	}
}

func TestClient_RequestIDHeader(t *testing.T) {
	var gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-Id")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0)
	if _, err := client.Get(context.Background(), "/", nil); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if gotID == "" {
		t.Error("Expected X-Request-Id header to be set")
	}
}
