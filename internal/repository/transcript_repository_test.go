package repository

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"fortec-chat-go/internal/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 只实现了 PUT/GET 单个对象，足够覆盖归档的读写。
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		if strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
			body = decodeAWSChunked(body)
		}
		f.objects[r.URL.Path] = body
		w.Header().Set("ETag", `"fake"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"fake"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// decodeAWSChunked 去掉 aws-chunked 编码的分块头：<hex>;chunk-signature=...\r\n<data>\r\n。
func decodeAWSChunked(raw []byte) []byte {
	var out []byte
	rest := string(raw)
	for {
		idx := strings.Index(rest, "\r\n")
		if idx < 0 {
			return out
		}
		header := rest[:idx]
		rest = rest[idx+2:]
		sizeHex := header
		if semi := strings.IndexByte(header, ';'); semi >= 0 {
			sizeHex = header[:semi]
		}
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil || size == 0 || int(size) > len(rest) {
			return out
		}
		out = append(out, rest[:size]...)
		rest = strings.TrimPrefix(rest[size:], "\r\n")
	}
}

func newFakeMinio(t *testing.T) (*minio.Client, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:        credentials.NewStaticV4("key", "secret", ""),
		Secure:       false,
		Region:       "us-east-1",
		BucketLookup: minio.BucketLookupPath,
	})
	require.NoError(t, err)
	return client, fake
}

func TestTranscriptRoundTrip(t *testing.T) {
	client, fake := newFakeMinio(t)
	repo := NewTranscriptRepository(client, "chat-transcripts")
	ctx := context.Background()

	msgs := []model.Message{
		{ID: "1", Content: "hi", IsUser: true, Timestamp: time.Unix(1700000000, 0).UTC()},
		{ID: "2", Content: "hello", ModelID: "mistral", Timestamp: time.Unix(1700000001, 0).UTC()},
	}
	require.NoError(t, repo.Save(ctx, "uid-1", "s1", msgs))
	assert.Contains(t, fake.objects, "/chat-transcripts/transcripts/uid-1/s1.json")

	loaded, err := repo.Load(ctx, "uid-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, msgs, loaded)
}

func TestTranscriptLoadMissingIsEmpty(t *testing.T) {
	client, _ := newFakeMinio(t)
	repo := NewTranscriptRepository(client, "chat-transcripts")

	loaded, err := repo.Load(context.Background(), "uid-1", "nope")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
