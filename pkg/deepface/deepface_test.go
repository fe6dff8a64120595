package deepface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract_faces", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "/data/family.jpg", body["img_path"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"faces":[{"facial_area":{"x":1,"y":2,"w":30,"h":40},"confidence":0.99},{"facial_area":{"x":50,"y":2,"w":30,"h":40},"confidence":0.97}]}`))
	}))
	defer srv.Close()

	faces, err := New().ExtractFaces(context.Background(), srv.URL, "/data/family.jpg")
	require.NoError(t, err)
	require.Len(t, faces, 2)
	assert.Equal(t, FacialArea{X: 1, Y: 2, W: 30, H: 40}, faces[0].FacialArea)
	assert.InDelta(t, 0.97, faces[1].Confidence, 1e-9)
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req VerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, VerifyRequest{
			Img1Path:       "a.jpg",
			Img2Path:       "b.jpg",
			ModelName:      "VGG-Face",
			DistanceMetric: "cosine",
		}, req)

		_, _ = w.Write([]byte(`{"verified":true,"distance":0.31,"threshold":0.68}`))
	}))
	defer srv.Close()

	res, err := New().Verify(context.Background(), srv.URL, VerifyRequest{
		Img1Path:       "a.jpg",
		Img2Path:       "b.jpg",
		ModelName:      "VGG-Face",
		DistanceMetric: "cosine",
	})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.InDelta(t, 0.31, res.Distance, 1e-9)
}

func TestWorkerErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Face could not be detected"}`))
	}))
	defer srv.Close()

	_, err := New().ExtractFaces(context.Background(), srv.URL, "blank.jpg")

	var workerErr *WorkerError
	require.ErrorAs(t, err, &workerErr)
	assert.Equal(t, http.StatusInternalServerError, workerErr.Status)
	assert.Equal(t, "Face could not be detected", workerErr.Message)
}

func TestContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New().ExtractFaces(ctx, srv.URL, "slow.jpg")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCancelledBeforeCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Verify(ctx, "http://127.0.0.1:1", VerifyRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
