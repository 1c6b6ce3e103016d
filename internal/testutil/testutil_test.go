package testutil

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

// recordingTB captures failures instead of failing the running test.
type recordingTB struct {
	testing.TB
	errors []string
	fatal  bool
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingTB) Fatalf(format string, args ...any) {
	r.Errorf(format, args...)
	r.fatal = true
}

func (r *recordingTB) Fatal(args ...any) {
	r.errors = append(r.errors, fmt.Sprint(args...))
	r.fatal = true
}

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)

	rec := &recordingTB{}
	AssertStatusCode(rec, http.StatusOK, http.StatusBadRequest)
	if len(rec.errors) != 1 || rec.fatal {
		t.Fatalf("mismatch should record one non-fatal error, got %v (fatal=%t)", rec.errors, rec.fatal)
	}
	if !strings.Contains(rec.errors[0], "200") || !strings.Contains(rec.errors[0], "400") {
		t.Errorf("message %q should name both codes", rec.errors[0])
	}
}

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	AssertNoError(t, nil)

	rec := &recordingTB{}
	AssertNoError(rec, errors.New("boom"))
	if !rec.fatal || len(rec.errors) != 1 || !strings.Contains(rec.errors[0], "boom") {
		t.Errorf("non-nil error should be fatal and quoted, got %v (fatal=%t)", rec.errors, rec.fatal)
	}
}

func TestAssertError(t *testing.T) {
	t.Parallel()

	AssertError(t, errors.New("test error"))

	rec := &recordingTB{}
	AssertError(rec, nil)
	if !rec.fatal || len(rec.errors) != 1 {
		t.Errorf("nil error should be fatal, got %v (fatal=%t)", rec.errors, rec.fatal)
	}
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodGet, "/api/snapshot?units=mph")
	if req.Method != http.MethodGet {
		t.Errorf("method = %s, want GET", req.Method)
	}
	if req.URL.Path != "/api/snapshot" || req.URL.Query().Get("units") != "mph" {
		t.Errorf("unexpected URL %s", req.URL)
	}
	if w := NewTestRecorder(); w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("recorder should start clean, got %d/%d", w.Code, w.Body.Len())
	}
}

func TestNewFormRequest(t *testing.T) {
	t.Parallel()

	req := NewFormRequest(http.MethodPost, "/api/control", url.Values{"action": {"time_scale"}, "value": {"2"}})
	if got := req.FormValue("action"); got != "time_scale" {
		t.Errorf("action = %q, want time_scale", got)
	}
	if got := req.FormValue("value"); got != "2" {
		t.Errorf("value = %q, want 2", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var got map[string]int
	DecodeJSON(t, strings.NewReader(`{"tick": 7}`), &got)
	if got["tick"] != 7 {
		t.Errorf("tick = %d, want 7", got["tick"])
	}

	rec := &recordingTB{}
	var v map[string]int
	DecodeJSON(rec, strings.NewReader(`{`), &v)
	if !rec.fatal || len(rec.errors) != 1 || !strings.Contains(rec.errors[0], "decode JSON response") {
		t.Errorf("invalid body should be fatal, got %v (fatal=%t)", rec.errors, rec.fatal)
	}
}
