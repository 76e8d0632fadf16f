package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ferrous-data/condition.report/internal/db"
	"github.com/ferrous-data/condition.report/internal/testutil"
)

func setupServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("opening test DB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewServer(database), database
}

func seedRun(t *testing.T, database *db.DB) string {
	t.Helper()
	rec := db.RunRecord{
		Unit:        "WNDS",
		Car:         "03",
		SourceFile:  "03_mergedata.dat",
		WindowStart: 1742032800,
		WindowEnd:   1742036400,
		FrameCount:  3,
		ErrorCount:  1,
	}
	values := []db.RunValue{
		{Slot: 0, Label: "speed_max", Kind: "plain_max", Number: 98.5},
		{Slot: 1, Label: "comm_fault", Kind: "event", Number: 0},
		{Slot: 2, Label: "hunting_alarm", Kind: "event", Time: "2025-03-15 10:40:00"},
	}
	scanErrs := []db.RunScanError{
		{FrameIndex: 2, ByteOffset: 526, Reason: "malformed_timestamp"},
	}

	runID, err := database.SaveRun(rec, values, scanErrs)
	if err != nil {
		t.Fatalf("seeding run: %v", err)
	}
	return runID
}

func TestHealthz(t *testing.T) {
	server, _ := setupServer(t)
	mux := server.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/healthz"))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestListRunsEmpty(t *testing.T) {
	server, _ := setupServer(t)
	mux := server.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/runs"))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list body = %q, want []", rec.Body.String())
	}
}

func TestListRuns(t *testing.T) {
	server, database := setupServer(t)
	runID := seedRun(t, database)
	mux := server.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/runs?limit=5"))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var runs []db.RunRecord
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].RunID != runID || runs[0].Unit != "WNDS" || runs[0].Car != "03" {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestListRunsRejectsBadLimit(t *testing.T) {
	server, _ := setupServer(t)
	mux := server.ServeMux()

	for _, q := range []string{"limit=0", "limit=abc", "limit=9999"} {
		rec := testutil.NewTestRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/runs?"+q))
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	}
}

func TestListRunsMethodNotAllowed(t *testing.T) {
	server, _ := setupServer(t)
	mux := server.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/runs"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestGetRun(t *testing.T) {
	server, database := setupServer(t)
	runID := seedRun(t, database)
	mux := server.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/runs/"+runID))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got db.RunRecord
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	if got.RunID != runID || got.FrameCount != 3 {
		t.Errorf("run = %+v", got)
	}
}

func TestGetRunNotFound(t *testing.T) {
	server, _ := setupServer(t)
	mux := server.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/runs/absent"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestRunValues(t *testing.T) {
	server, database := setupServer(t)
	runID := seedRun(t, database)
	mux := server.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/runs/"+runID+"/values"))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var values []db.RunValue
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &values))
	if len(values) != 3 {
		t.Fatalf("got %d values, want 3", len(values))
	}
	if values[0].Label != "speed_max" || values[2].Time != "2025-03-15 10:40:00" {
		t.Errorf("values = %+v", values)
	}
}

func TestRunScanErrors(t *testing.T) {
	server, database := setupServer(t)
	runID := seedRun(t, database)
	mux := server.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/runs/"+runID+"/errors"))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var scanErrs []db.RunScanError
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &scanErrs))
	if len(scanErrs) != 1 || scanErrs[0].Reason != "malformed_timestamp" {
		t.Errorf("scan errors = %+v", scanErrs)
	}
}

func TestRunUnknownSubresource(t *testing.T) {
	server, database := setupServer(t)
	runID := seedRun(t, database)
	mux := server.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/runs/"+runID+"/bogus"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestRunChart(t *testing.T) {
	server, database := setupServer(t)
	runID := seedRun(t, database)
	mux := server.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/runs/"+runID+"/chart"))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "echarts") || !strings.Contains(body, "WNDS car 03") {
		t.Error("chart page missing expected content")
	}
}

func TestRunChartNotFound(t *testing.T) {
	server, _ := setupServer(t)
	mux := server.ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/runs/absent/chart"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestLoggingMiddlewarePreservesStatus(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := testutil.NewTestRecorder()
	handler.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
}
