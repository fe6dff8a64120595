package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	bucket, key, err := ParseRef("s3://family-photos/2024/beach/img 1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "family-photos", bucket)
	assert.Equal(t, "2024/beach/img 1.jpg", key)

	for _, ref := range []string{
		"photos/a.jpg",
		"s3://",
		"s3://bucket",
		"s3://bucket/",
		"s3:///key.jpg",
		"s3://bucket/dir/",
		"s3://bucket/../etc/passwd",
	} {
		_, _, err := ParseRef(ref)
		assert.ErrorIs(t, err, ErrInvalidRef, ref)
	}
}

// fakeS3 serves path-style GetObject requests from a map.
func fakeS3(t *testing.T, objects map[string]string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := objects[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, endpoint string) ItfS3 {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client, err := New(Options{
		Region:     "us-east-1",
		Endpoint:   endpoint,
		AccessKey:  "test",
		SecretKey:  "test",
		StagingDir: t.TempDir(),
	}, logger)
	require.NoError(t, err)
	return client
}

func TestStageDownloadsObject(t *testing.T) {
	srv := fakeS3(t, map[string]string{"photos/family/a.jpg": "jpeg-bytes"})
	client := newTestClient(t, srv.URL)

	path, err := client.Stage(context.Background(), "s3://photos/family/a.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, filepath.Join("photos", "family", "a.jpg")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	again, err := client.Stage(context.Background(), "s3://photos/family/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestStageMissingObject(t *testing.T) {
	srv := fakeS3(t, map[string]string{})
	client := newTestClient(t, srv.URL)

	_, err := client.Stage(context.Background(), "s3://photos/missing.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
