package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region fake-s3

// fakeS3 answers the subset of the S3 REST API the store uses.
type fakeS3 struct {
	mu    sync.Mutex
	state map[string]fakeObj
}

type fakeObj struct {
	body        []byte
	contentType string
}

func (m *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && strings.Contains(req.URL.RawQuery, "list-type=2") {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range m.state {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2026-01-01T00:00:00Z</LastModified></Contents>", k, len(m.state[k].body))
		}
		b.WriteString("</ListBucketResult>")
		return respond(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}}), nil
	}
	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		m.state[key] = fakeObj{body: body, contentType: req.Header.Get("Content-Type")}
		return respond(http.StatusOK, nil, http.Header{"ETag": {`"etag"`}}), nil
	case http.MethodHead, http.MethodGet:
		st, ok := m.state[key]
		if !ok {
			body := []byte(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			if req.Method == http.MethodHead {
				body = nil
			}
			return respond(http.StatusNotFound, body, http.Header{"Content-Type": {"application/xml"}}), nil
		}
		h := http.Header{
			"Content-Length": {fmt.Sprint(len(st.body))},
			"Content-Type":   {st.contentType},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
		}
		if req.Method == http.MethodHead {
			return respond(http.StatusOK, nil, h), nil
		}
		return respond(http.StatusOK, st.body, h), nil
	case http.MethodDelete:
		delete(m.state, key)
		return respond(http.StatusNoContent, nil, http.Header{}), nil
	}
	return respond(http.StatusNotImplemented, nil, http.Header{}), nil
}

func respond(status int, body []byte, h http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: h, ContentLength: int64(len(body))}
}

// decodeChunked unwraps a single-chunk aws-chunked payload.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	head := strings.SplitN(parts[0], ";", 2)[0]
	var size int
	if _, err := fmt.Sscanf(head, "%x", &size); err != nil || size != len(parts[1]) {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeS3Store(t *testing.T, prefix string) (*S3Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{state: make(map[string]fakeObj)}
	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:          "spectra",
		Prefix:          prefix,
		Endpoint:        "https://fake.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
	})
	require.NoError(t, err)
	return store, fake
}

// #endregion fake-s3

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	s3Store, _ := newFakeS3Store(t, "")
	return map[string]Store{
		"memory": NewMemoryStore(),
		"fs":     fsStore,
		"s3":     s3Store,
	}
}

func TestStores_PutGetListDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			info, err := store.Put(ctx, "datasets/a.json", strings.NewReader(`{"id":"a"}`), PutOptions{ContentType: "application/json"})
			require.NoError(t, err)
			assert.Equal(t, int64(10), info.Size)

			_, err = store.Put(ctx, "datasets/a.json", strings.NewReader(`{"id":"a2"}`), PutOptions{ContentType: "application/json"})
			require.NoError(t, err, "put replaces")
			_, err = store.Put(ctx, "other/b.json", strings.NewReader(`{}`), PutOptions{})
			require.NoError(t, err)

			got, rc, err := store.Get(ctx, "datasets/a.json")
			require.NoError(t, err)
			body, _ := io.ReadAll(rc)
			rc.Close()
			assert.Equal(t, `{"id":"a2"}`, string(body))
			assert.Equal(t, "application/json", got.ContentType)

			list, err := store.List(ctx, "datasets/")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "datasets/a.json", list[0].Key)

			ok, err := store.Delete(ctx, "datasets/a.json")
			require.NoError(t, err)
			assert.True(t, ok)
			_, _, err = store.Get(ctx, "datasets/a.json")
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
		})
	}
}

func TestStores_RejectBadKeys(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		for _, key := range []string{"", "../escape", "/abs"} {
			_, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{})
			assert.Error(t, err, "%s %q", name, key)
		}
	}
}

func TestS3Store_Prefix(t *testing.T) {
	store, fake := newFakeS3Store(t, "team/")
	ctx := context.Background()
	_, err := store.Put(ctx, "datasets/x.yaml", strings.NewReader("id: x\n"), PutOptions{})
	require.NoError(t, err)

	_, ok := fake.state["team/datasets/x.yaml"]
	assert.True(t, ok, "object stored under prefix")

	list, err := store.List(ctx, "datasets/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "datasets/x.yaml", list[0].Key)
	assert.Equal(t, DriverS3, store.Driver())
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	assert.Error(t, err)
}
