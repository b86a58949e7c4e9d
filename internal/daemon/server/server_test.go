package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/internal/daemon/store"
	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	backend := store.NewMemory()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv := New(logger.WithField("component", "test"), backend)
	srv.SetRunningConfig(&RunningConfig{Tenant: "t1", Driver: "memory"})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		backend.Close()
	})
	return ts, backend
}

func docsURL(ts *httptest.Server, collection, id string) string {
	q := url.Values{"collection": {collection}}
	if id != "" {
		q.Set("id", id)
	}
	return ts.URL + "/api/docs?" + q.Encode()
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetConfig(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()

	var cfg RunningConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, "t1", cfg.Tenant)
}

func TestDocsLifecycle(t *testing.T) {
	ts, backend := newTestServer(t)
	collection := "t1/public/apps"

	body, _ := json.Marshal(AddRequest{Fields: docstore.Fields{"name": "Ann", "category": "tools"}})
	resp, err := http.Post(docsURL(ts, collection, ""), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var added AddResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&added))
	resp.Body.Close()
	assert.NotEmpty(t, added.ID)

	resp, err = http.Get(docsURL(ts, collection, ""))
	require.NoError(t, err)
	var snap docstore.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, "Ann", snap.Docs[0].Fields["name"])

	req, _ := http.NewRequest(http.MethodDelete, docsURL(ts, collection, added.ID), nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err := backend.Get(req.Context(), docstore.Path(collection))
	require.NoError(t, err)
	assert.Empty(t, got.Docs)
}

func TestDocsErrors(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		url    string
		status int
		code   errors.ErrorCode
	}{
		{"missing collection", http.MethodGet, ts.URL + "/api/docs", http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"empty segment", http.MethodGet, docsURL(ts, "t1//apps", ""), http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"delete without id", http.MethodDelete, docsURL(ts, "t1/public/apps", ""), http.StatusBadRequest, errors.ErrCodeValidation},
		{"delete unknown id", http.MethodDelete, docsURL(ts, "t1/public/apps", "nope"), http.StatusNotFound, errors.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, tt.url, nil)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			var appErr errors.AppError
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&appErr))
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestStreamSendsSnapshots(t *testing.T) {
	ts, backend := newTestServer(t)
	collection := docstore.CatalogPath("t1")

	resp, err := http.Get(ts.URL + "/api/stream?collection=" + url.QueryEscape(collection.String()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() StreamEvent {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var ev StreamEvent
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
				return ev
			}
		}
	}

	first := readEvent()
	require.NotNil(t, first.Snapshot)
	assert.Empty(t, first.Snapshot.Docs)

	_, err = backend.Add(resp.Request.Context(), collection, docstore.Fields{"name": "Zed"})
	require.NoError(t, err)

	second := readEvent()
	require.NotNil(t, second.Snapshot)
	require.Len(t, second.Snapshot.Docs, 1)
	assert.Equal(t, "Zed", second.Snapshot.Docs[0].Fields["name"])
}
