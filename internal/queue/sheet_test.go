package queue_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/queue"
	"vidpipe/internal/services"
)

type sheetUpdate struct {
	Range string
	Value string
}

// fakeSheetBackend emulates the values.get / values.update endpoints the
// adapter touches.
type fakeSheetBackend struct {
	mu          sync.Mutex
	values      [][]interface{}
	updates     []sheetUpdate
	gets        int
	failGets    int
	failUpdates int
	failCode    int
}

func (f *fakeSheetBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		idx := strings.Index(r.URL.Path, "/values/")
		if idx < 0 {
			http.NotFound(w, r)
			return
		}
		rng := r.URL.Path[idx+len("/values/"):]

		switch r.Method {
		case http.MethodGet:
			f.gets++
			if f.failGets > 0 {
				f.failGets--
				writeAPIError(w, f.code())
				return
			}
			resp := sheets.ValueRange{Range: rng, MajorDimension: "ROWS", Values: f.values}
			_ = json.NewEncoder(w).Encode(resp)
		case http.MethodPut:
			if f.failUpdates > 0 {
				f.failUpdates--
				writeAPIError(w, f.code())
				return
			}
			var body sheets.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeAPIError(w, http.StatusBadRequest)
				return
			}
			value := ""
			if len(body.Values) > 0 && len(body.Values[0]) > 0 {
				value, _ = body.Values[0][0].(string)
			}
			f.updates = append(f.updates, sheetUpdate{Range: rng, Value: value})
			_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{UpdatedCells: 1})
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeSheetBackend) code() int {
	if f.failCode == 0 {
		return http.StatusServiceUnavailable
	}
	return f.failCode
}

func writeAPIError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":{"code":%d,"message":%q}}`, code, http.StatusText(code))))
}

func newTestStore(t *testing.T, backend *fakeSheetBackend) *queue.SheetStore {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	cfg := config.Default().Sheet
	cfg.SpreadsheetID = "sheet-1"

	store, err := queue.NewSheetStore(t.Context(), cfg, logging.NewNop(),
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("new sheet store: %v", err)
	}
	store.SetRetry(3, time.Millisecond)
	return store
}

func queueGrid() [][]interface{} {
	return [][]interface{}{
		{"자동 영상 큐", "", "", "", "", "", "", "", ""},
		{"상태", "대본", "예약시간", "제목", "썸네일", "영상링크", "오류", "비용", "처리시작"},
		{"대기", "첫 번째 대본입니다. 감사합니다!", "", "", "", "", "", "", ""},
		{"완료", "둘째 대본.", "", "제목 오버라이드", "", "https://youtu.be/x", "", "0.1200", "2026-02-01T03:00:00Z"},
		{"", "", "", "", "", "", "", "", ""},
		{"대기", "셋째 대본.", "2026-03-02 09:00", "", "", "", "", "", ""},
		{"보류", "상태를 알 수 없는 행", "", "", "", "", "", "", ""},
	}
}

func TestSheetStoreReadRows(t *testing.T) {
	backend := &fakeSheetBackend{values: queueGrid()}
	store := newTestStore(t, backend)

	jobs, err := store.ReadRows(t.Context())
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(jobs) != 4 {
		t.Fatalf("expected 4 jobs (blank row skipped), got %d", len(jobs))
	}

	first := jobs[0]
	if first.Row != 3 {
		t.Fatalf("first data row should be sheet row 3, got %d", first.Row)
	}
	if first.Status != queue.StatusWaiting {
		t.Fatalf("first status = %v", first.Status)
	}
	if first.Script != "첫 번째 대본입니다. 감사합니다!" {
		t.Fatalf("script altered: %q", first.Script)
	}

	done := jobs[1]
	if done.Status != queue.StatusDone || done.ResultURL != "https://youtu.be/x" {
		t.Fatalf("done row parsed wrong: %+v", done)
	}
	if done.CostEstimate != 0.12 {
		t.Fatalf("cost = %v, want 0.12", done.CostEstimate)
	}
	if done.ProcessingStartedAt == nil {
		t.Fatal("expected parsed processing start time")
	}
	if done.TitleOverride != "제목 오버라이드" {
		t.Fatalf("title override = %q", done.TitleOverride)
	}

	scheduled := jobs[2]
	if scheduled.Row != 6 {
		t.Fatalf("blank row must keep numbering, got row %d", scheduled.Row)
	}
	if scheduled.ScheduledAt == nil {
		t.Fatal("expected scheduled time to parse")
	}

	unknown := jobs[3]
	if unknown.Status != queue.StatusUnknown {
		t.Fatalf("unrecognized label should map to unknown, got %v", unknown.Status)
	}
}

func TestSheetStoreEmptySheetIsNotAnError(t *testing.T) {
	backend := &fakeSheetBackend{values: nil}
	store := newTestStore(t, backend)

	jobs, err := store.ReadRows(t.Context())
	if err != nil {
		t.Fatalf("empty sheet must not error: %v", err)
	}
	if jobs == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestSheetStoreMissingHeaderIsConfigError(t *testing.T) {
	backend := &fakeSheetBackend{values: [][]interface{}{
		{"아무 관련 없는", "셀"},
		{"값", "값"},
	}}
	store := newTestStore(t, backend)

	_, err := store.ReadRows(t.Context())
	if err == nil {
		t.Fatal("expected header mapping error")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
}

func TestSheetStoreRetriesTransientFaults(t *testing.T) {
	backend := &fakeSheetBackend{values: queueGrid(), failGets: 2}
	store := newTestStore(t, backend)

	jobs, err := store.ReadRows(t.Context())
	if err != nil {
		t.Fatalf("expected recovery after transient faults: %v", err)
	}
	if len(jobs) == 0 {
		t.Fatal("expected jobs after retry")
	}
	if backend.gets != 3 {
		t.Fatalf("expected 3 attempts, got %d", backend.gets)
	}
}

func TestSheetStoreDoesNotRetryRejections(t *testing.T) {
	backend := &fakeSheetBackend{values: queueGrid(), failGets: 10, failCode: http.StatusForbidden}
	store := newTestStore(t, backend)

	_, err := store.ReadRows(t.Context())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrProviderRejected) {
		t.Fatalf("expected rejection marker, got %v", err)
	}
	if backend.gets != 1 {
		t.Fatalf("4xx must not retry, got %d attempts", backend.gets)
	}
}

func TestSheetStoreUpdateCellTargetsMappedColumn(t *testing.T) {
	backend := &fakeSheetBackend{values: queueGrid()}
	store := newTestStore(t, backend)

	if err := store.UpdateCell(t.Context(), 3, queue.FieldStatus, queue.StatusProcessing.Label()); err != nil {
		t.Fatalf("update cell: %v", err)
	}
	if len(backend.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(backend.updates))
	}
	update := backend.updates[0]
	if !strings.HasSuffix(update.Range, "!A3") {
		t.Fatalf("status lives in column A row 3, got range %q", update.Range)
	}
	if update.Value != "처리중" {
		t.Fatalf("value = %q", update.Value)
	}

	if err := store.UpdateCell(t.Context(), 3, queue.FieldResultURL, "https://youtu.be/y"); err != nil {
		t.Fatalf("update result url: %v", err)
	}
	if !strings.HasSuffix(backend.updates[1].Range, "!F3") {
		t.Fatalf("result url lives in column F, got %q", backend.updates[1].Range)
	}
}

func TestSheetStoreUpdateRejectsHeaderRows(t *testing.T) {
	backend := &fakeSheetBackend{values: queueGrid()}
	store := newTestStore(t, backend)

	err := store.UpdateCell(t.Context(), 2, queue.FieldStatus, "완료")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for header row, got %v", err)
	}
}
