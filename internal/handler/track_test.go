package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfast/internal/apperr"
	"bfast/internal/service"
)

type fakeTracker struct {
	lookup *service.TrackLookup
	err    error
}

func (f *fakeTracker) Track(context.Context, string) (*service.TrackLookup, error) {
	return f.lookup, f.err
}

func trackRequest(t *testing.T, tracker Tracker, awb string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/track/{awb}", TrackHandler(tracker))

	req := httptest.NewRequest(http.MethodGet, "/api/track/"+awb, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTrackHandlerReportsSource(t *testing.T) {
	tracker := &fakeTracker{lookup: &service.TrackLookup{
		Source: service.TrackSourceCached,
		Result: &service.TrackingResult{AWB: "AWB1", Status: "Delivered"},
	}}

	rec := trackRequest(t, tracker, "AWB1")
	require.Equal(t, http.StatusOK, rec.Code)

	var got service.TrackLookup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, service.TrackSourceCached, got.Source)
	assert.Equal(t, "Delivered", got.Result.Status)
}

func TestTrackHandlerNotFound(t *testing.T) {
	tracker := &fakeTracker{err: &apperr.NotFoundError{Resource: "shipment", ID: "GHOST"}}
	rec := trackRequest(t, tracker, "GHOST")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrackHandlerUpstreamFailure(t *testing.T) {
	tracker := &fakeTracker{err: &apperr.UpstreamError{System: "shiprocket", StatusCode: 502}}
	rec := trackRequest(t, tracker, "AWB1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
