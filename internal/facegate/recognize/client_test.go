package recognize_test

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/recognize"
	"github.com/jmsoler/facegate/internal/facegate/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *recognize.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return recognize.NewClient(recognize.ClientConfig{BaseURL: srv.URL}, log.New(io.Discard, "", 0))
}

func TestClient_DetectReturnsFaces(t *testing.T) {
	var gotBody []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/detect" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("unexpected content type %s", ct)
		}
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"faces": [
			{"box": {"top": 10, "right": 90, "bottom": 80, "left": 20}, "vector": [0.1, 0.2]},
			{"box": {"top": 5, "right": 40, "bottom": 30, "left": 15}, "vector": [0.3, 0.4]}
		]}`)
	})

	frame := types.Frame{At: time.Now(), Data: []byte("jpeg-bytes")}
	detections, err := c.Detect(context.Background(), frame)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if string(gotBody) != "jpeg-bytes" {
		t.Errorf("frame bytes not forwarded, got %q", gotBody)
	}
	if len(detections) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(detections))
	}
	if detections[0].Box.Top != 10 || detections[0].Vector[1] != 0.2 {
		t.Errorf("first detection mismatched: %+v", detections[0])
	}
}

func TestClient_NoFacesIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"faces": []}`)
	})

	detections, err := c.Detect(context.Background(), types.Frame{Data: []byte("x")})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detections) != 0 {
		t.Errorf("expected zero detections, got %d", len(detections))
	}
}

func TestClient_SidecarErrorIsReported(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	if _, err := c.Detect(context.Background(), types.Frame{Data: []byte("x")}); err == nil {
		t.Fatal("expected error for sidecar failure")
	}
}

func TestClient_MalformedResponseIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	})

	if _, err := c.Detect(context.Background(), types.Frame{Data: []byte("x")}); err == nil {
		t.Fatal("expected error for malformed response")
	}
}
