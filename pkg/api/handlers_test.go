package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navarrastar/contactsheet/pkg/metrics"
	"github.com/navarrastar/contactsheet/pkg/models"
	"github.com/navarrastar/contactsheet/pkg/services"
	"github.com/navarrastar/contactsheet/pkg/sheet"
)

var fixedNow = time.Date(2024, 7, 1, 12, 30, 45, 123_000_000, time.UTC)

type failingStore struct{}

func (failingStore) Append(context.Context, models.Record) (int, error) {
	return 0, &sheet.PersistenceError{Op: "write", Table: "Form Responses", Cause: errors.New("disk full")}
}

func newTestRouter(t *testing.T, store services.Appender) (*gin.Engine, *sheet.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var mem *sheet.Store
	if store == nil {
		mem = sheet.NewStore(sheet.NewMemoryBook(), "Form Responses")
		store = mem
	}
	svc := services.NewSubmissionService(store, services.WithClock(func() time.Time { return fixedNow }))
	h := NewHandlers(svc, "Form Responses", "memory")
	h.now = func() time.Time { return fixedNow }
	return NewRouter(h, metrics.New().Handler()), mem
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const validJSON = `{
	"fullName": "Test User",
	"email": "test@example.com",
	"phone": "",
	"streetAddress": "123 Test Street",
	"city": "London",
	"postcode": "SW1A 1AA",
	"comments": "",
	"timestamp": "2020-01-01T00:00:00.000Z"
}`

func TestHandleSubmission_JSON(t *testing.T) {
	router, store := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(validJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Data saved successfully! Row #2", body["message"])
	assert.Equal(t, float64(2), body["rowNumber"])
	assert.Equal(t, "2024-07-01T12:30:45.123Z", body["timestamp"], "server clock, not the client's")

	row, err := store.Read(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Test User", row.Submission.FullName)
}

func TestHandleSubmission_Form(t *testing.T) {
	router, store := newTestRouter(t, nil)

	form := url.Values{
		"fullName":      {"Test User"},
		"email":         {"test@example.com"},
		"streetAddress": {"123 Test Street"},
		"city":          {"London"},
		"postcode":      {"SW1A 1AA"},
		"comments":      {"Please call"},
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["rowNumber"])

	row, err := store.Read(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Please call", row.Submission.Comments)
	assert.Equal(t, "", row.Submission.Phone)
}

func TestHandleSubmission_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "invalid email",
			payload: `{"fullName":"Test User","email":"not-an-email","streetAddress":"123 Test Street","city":"London","postcode":"SW1A 1AA"}`,
			want:    "Invalid email format",
		},
		{
			name:    "missing city",
			payload: `{"fullName":"Test User","email":"test@example.com","streetAddress":"123 Test Street","postcode":"SW1A 1AA"}`,
			want:    "Missing required field: city",
		},
		{
			name:    "missing email reported before city",
			payload: `{"fullName":"Test User","streetAddress":"123 Test Street"}`,
			want:    "Missing required field: email",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, nil)

			req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(tt.payload))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.want, body["message"])
			assert.NotContains(t, body, "rowNumber")
			assert.Equal(t, "2024-07-01T12:30:45.123Z", body["timestamp"])
		})
	}
}

func TestHandleSubmission_MalformedBody(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"fullName":`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MessageBadRequest, decode(t, rec)["message"])
}

func TestHandleSubmission_PersistenceFailure(t *testing.T) {
	router, _ := newTestRouter(t, failingStore{})

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(validJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, MessageSaveFailed, body["message"])
	assert.NotContains(t, body, "rowNumber")
	assert.NotContains(t, rec.Body.String(), "disk full", "cause stays server-side")
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	for _, path := range []string{"/", "/health"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusOK, rec.Code, path)
		body := decode(t, rec)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "Form Responses", body["sheetName"])
		assert.Equal(t, "memory", body["backend"])
		assert.Equal(t, "2024-07-01T12:30:45.123Z", body["timestamp"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
