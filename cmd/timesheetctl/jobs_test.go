package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data}))
}

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestJobsStart_WaitExhaustsAttempts(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/jobs":
			var req syncjob.StartJobRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "external-sync", req.Kind)
			writeEnvelope(t, w, http.StatusCreated, runningJob())
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/jobs/"):
			polls.Add(1)
			writeEnvelope(t, w, http.StatusOK, runningJob())
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := executeCLI(t,
		"--server", srv.URL, "--token", "test-token",
		"jobs", "start", "external-sync", "--wait", "--interval", "1ms", "--max-attempts", "3",
	)
	require.NoError(t, err, "exhausting the poll budget is not a failure")
	assert.Equal(t, int32(3), polls.Load())
	assert.Contains(t, out, "Still running, check later (3 attempts)")
}

func TestJobsStatus_FailedJobExitsWithFailure(t *testing.T) {
	failed := completedJob()
	failed.Status = "FAILED"
	failed.Result = nil
	failed.ErrorMessage = strPtr("attendance provider fetch attendance: status 503: unavailable")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusOK, failed)
	}))
	defer srv.Close()

	out, err := executeCLI(t, "--server", srv.URL, "jobs", "status", failed.ID)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Status:    FAILED")
	assert.Contains(t, out, "status 503: unavailable")
}

func TestJobsStart_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"JOB_ALREADY_RUNNING","message":"A job of this kind is already pending or running"}}`))
	}))
	defer srv.Close()

	_, err := executeCLI(t, "--server", srv.URL, "jobs", "start", "cleanup-duplicates")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "JOB_ALREADY_RUNNING")
}

func TestJobsList_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cleanup-duplicates", r.URL.Query().Get("kind"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeEnvelope(t, w, http.StatusOK, []syncjob.JobResponse{completedJob()})
	}))
	defer srv.Close()

	out, err := executeCLI(t, "--server", srv.URL, "--format", "json", "jobs", "list", "--kind", "cleanup-duplicates", "--limit", "5")
	require.NoError(t, err)

	var jobs []syncjob.JobResponse
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "COMPLETED", jobs[0].Status)
}

func TestPollPolicyFromEnv(t *testing.T) {
	assert.Equal(t, syncjob.DefaultPollPolicy, pollPolicyFromEnv())

	t.Setenv("SYNC_POLL_INTERVAL", "500ms")
	t.Setenv("SYNC_POLL_MAX_ATTEMPTS", "10")
	assert.Equal(t, syncjob.PollPolicy{Interval: 500 * time.Millisecond, MaxAttempts: 10}, pollPolicyFromEnv())

	t.Setenv("SYNC_POLL_MAX_ATTEMPTS", "many")
	assert.Equal(t, syncjob.DefaultPollPolicy.MaxAttempts, pollPolicyFromEnv().MaxAttempts)
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, err := executeCLI(t, "--format", "xml", "jobs", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestToken_MintsVerifiableToken(t *testing.T) {
	out, err := executeCLI(t, "token", "--secret", "local-secret", "--user-id", "ops", "--format", "json")
	require.NoError(t, err)

	var tok tokenOutput
	require.NoError(t, json.Unmarshal([]byte(out), &tok))
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.ExpiresAt)
}
