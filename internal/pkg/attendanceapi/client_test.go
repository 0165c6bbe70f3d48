package attendanceapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := timesheet.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_FetchPagesAcrossWindows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		writeJSON(t, w, map[string]any{"access_token": "tok-123", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/attendance", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "50", q.Get("page_size"))

		switch q.Get("from") + "/" + q.Get("page") {
		case "2026-10-05/1":
			assert.Equal(t, "2026-10-11", q.Get("to"))
			writeJSON(t, w, map[string]any{
				"data": []map[string]string{
					{"id": "a-1", "employee_code": " E001 ", "date": "2026-10-05", "start_time": "09:00", "end_time": "12:00", "company_id": "acme", "company_name": "Acme Corp"},
				},
				"next_page": 2,
			})
		case "2026-10-05/2":
			writeJSON(t, w, map[string]any{
				"data": []map[string]string{
					{"id": "a-2", "employee_code": "E001", "date": "2026-10-06", "start_time": "13:00", "end_time": "17:30", "entry_type": "TRAVEL", "company_id": "acme"},
				},
			})
		case "2026-10-12/1":
			assert.Equal(t, "2026-10-16", q.Get("to"))
			writeJSON(t, w, map[string]any{
				"data": []map[string]string{
					{"id": "a-3", "employee_code": "E002", "date": "2026-10-14", "start_time": "08:00", "end_time": "10:00", "entry_type": "Client visit", "company_id": "globex"},
				},
			})
		default:
			t.Errorf("unexpected request %s", r.URL.RawQuery)
			http.Error(w, "unexpected", http.StatusBadRequest)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(context.Background(), Config{
		BaseURL:      srv.URL + "/",
		TokenURL:     srv.URL + "/oauth/token",
		ClientID:     "timesheet",
		ClientSecret: "secret",
		PageSize:     50,
	})
	assert.Equal(t, "attendance-api", client.Name())

	records, err := client.Fetch(context.Background(), day("2026-10-05"), day("2026-10-16").Add(15*time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "a-1", records[0].ExternalID)
	assert.Equal(t, "E001", records[0].EmployeeCode)
	assert.Equal(t, "Acme Corp", records[0].CompanyName)
	assert.Equal(t, timesheet.EntryTypeGeneral, records[0].EntryType)
	assert.Equal(t, "09:00", records[0].StartTime.String())

	assert.Equal(t, "a-2", records[1].ExternalID)
	assert.Equal(t, timesheet.EntryTypeTravel, records[1].EntryType)
	assert.Equal(t, "17:30", records[1].EndTime.String())

	assert.Equal(t, "a-3", records[2].ExternalID)
	assert.True(t, records[2].EntryType.IsOther())
	assert.Equal(t, "Client visit", records[2].EntryType.String())
	assert.True(t, records[2].Date.Equal(day("2026-10-14")))
}

func TestClient_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClientWithHTTP(Config{BaseURL: srv.URL}, srv.Client())
	_, err := client.Fetch(context.Background(), day("2026-10-12"), day("2026-10-12"))

	var extErr *attendance.ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, http.StatusServiceUnavailable, extErr.StatusCode)
	assert.Contains(t, err.Error(), "maintenance")
}

func TestClient_MalformedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"data": []map[string]string{{"id": "bad", "date": "14/10/2026", "start_time": "09:00", "end_time": "10:00"}},
		})
	}))
	defer srv.Close()

	client := NewClientWithHTTP(Config{BaseURL: srv.URL}, srv.Client())
	_, err := client.Fetch(context.Background(), day("2026-10-12"), day("2026-10-12"))

	var extErr *attendance.ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "decode record", extErr.Op)
}

func TestClient_NonAdvancingPageFails(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeJSON(t, w, map[string]any{
			"data": []map[string]string{
				{"id": "a-1", "employee_code": "E001", "date": "2026-10-12", "start_time": "09:00", "end_time": "10:00"},
			},
			"next_page": 1,
		})
	}))
	defer srv.Close()

	client := NewClientWithHTTP(Config{BaseURL: srv.URL}, srv.Client())
	_, err := client.Fetch(context.Background(), day("2026-10-12"), day("2026-10-12"))

	var extErr *attendance.ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "paginate attendance", extErr.Op)
	assert.Contains(t, err.Error(), "next_page 1")
	assert.Equal(t, int32(1), requests.Load())
}

func TestClient_OversizedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"padding":"` + strings.Repeat("x", maxResponseBytes) + `"}`))
	}))
	defer srv.Close()

	client := NewClientWithHTTP(Config{BaseURL: srv.URL}, srv.Client())
	_, err := client.Fetch(context.Background(), day("2026-10-12"), day("2026-10-12"))

	var extErr *attendance.ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "read response", extErr.Op)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestSplitWindows(t *testing.T) {
	cases := []struct {
		name     string
		from, to string
		days     int
		want     []string
	}{
		{"single day", "2026-10-12", "2026-10-12", 7, []string{"2026-10-12..2026-10-12"}},
		{"exact week", "2026-10-12", "2026-10-18", 7, []string{"2026-10-12..2026-10-18"}},
		{"partial tail", "2026-10-12", "2026-10-20", 7, []string{"2026-10-12..2026-10-18", "2026-10-19..2026-10-20"}},
		{"daily", "2026-10-30", "2026-11-01", 1, []string{"2026-10-30..2026-10-30", "2026-10-31..2026-10-31", "2026-11-01..2026-11-01"}},
		{"inverted", "2026-10-13", "2026-10-12", 7, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var got []string
			for _, w := range splitWindows(day(c.from), day(c.to), c.days) {
				got = append(got, w[0].Format(timesheet.DateLayout)+".."+w[1].Format(timesheet.DateLayout))
			}
			assert.Equal(t, c.want, got)
		})
	}
}
