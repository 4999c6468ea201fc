package statusserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/gemini-client/internal/errs"
	"github.com/howard-nolan/gemini-client/internal/streaming"
)

type fakeRegistry struct {
	stats   streaming.Stats
	streams []streaming.Info
	infoErr error
}

func (f *fakeRegistry) GetStats() streaming.Stats      { return f.stats }
func (f *fakeRegistry) ListStreams() []streaming.Info  { return f.streams }
func (f *fakeRegistry) GetStreamInfo(id string) (streaming.Info, error) {
	if f.infoErr != nil {
		return streaming.Info{}, f.infoErr
	}
	for _, s := range f.streams {
		if s.ID == id {
			return s, nil
		}
	}
	return streaming.Info{}, errs.NewStreamNotFound(id)
}

func TestHandleHealth(t *testing.T) {
	srv := New(&fakeRegistry{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleStats(t *testing.T) {
	srv := New(&fakeRegistry{stats: streaming.Stats{Active: 2, Total: 3}})
	req := httptest.NewRequest(http.MethodGet, "/streams/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var stats streaming.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Active)
}

func TestHandleStreamInfo_NotFound(t *testing.T) {
	srv := New(&fakeRegistry{})
	req := httptest.NewRequest(http.MethodGet, "/streams/nope", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStreamInfo_Found(t *testing.T) {
	srv := New(&fakeRegistry{streams: []streaming.Info{{ID: "abc123", Status: streaming.StatusActive}}})
	req := httptest.NewRequest(http.MethodGet, "/streams/abc123", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var info streaming.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, streaming.StatusActive, info.Status)
}

func TestHandleListStreams(t *testing.T) {
	srv := New(&fakeRegistry{streams: []streaming.Info{{ID: "a"}, {ID: "b"}}})
	req := httptest.NewRequest(http.MethodGet, "/streams", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var infos []streaming.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Len(t, infos, 2)
}
