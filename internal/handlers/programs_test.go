package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"irrigation_controller/internal/models"
	"irrigation_controller/internal/service"
)

const lawnBody = `{"name":"Lawn","months":[6,7],"activation_time":"06:00","recurrence":"daily","steps":[{"zone_id":1,"duration_minutes":10}]}`

func TestProgramsHandler_List(t *testing.T) {
	programs := &mockPrograms{programs: []models.Program{{ID: "a", Name: "Lawn"}, {ID: "b", Name: "Beds"}}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, Programs: programs})

	w := do(r, http.MethodGet, "/api/v1/programs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out struct {
		Count    int              `json:"count"`
		Programs []models.Program `json:"programs"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || out.Programs[1].ID != "b" {
		t.Fatalf("unexpected body: %+v", out)
	}
}

func TestProgramsHandler_Create(t *testing.T) {
	programs := &mockPrograms{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, Programs: programs})

	w := do(r, http.MethodPost, "/api/v1/programs", lawnBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var p models.Program
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.ID != "new-id" || p.Name != "Lawn" {
		t.Fatalf("unexpected program: %+v", p)
	}
	got := programs.lastProgram
	if got.ActivationTime != "06:00" || len(got.Months) != 2 || len(got.Steps) != 1 || got.Steps[0].DurationMinutes != 10 {
		t.Fatalf("request not mapped: %+v", got)
	}

	if w := do(r, http.MethodPost, "/api/v1/programs", `{"name":`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status=%d", w.Code)
	}
}

func TestProgramsHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		err    error
		want   int
	}{
		{"create month conflict", http.MethodPost, "/api/v1/programs", lawnBody, fmt.Errorf("%w: months June already used by program %q", service.ErrConflict, "Beds"), http.StatusConflict},
		{"create invalid", http.MethodPost, "/api/v1/programs", lawnBody, fmt.Errorf("%w: no steps", service.ErrValidation), http.StatusBadRequest},
		{"get missing", http.MethodGet, "/api/v1/programs/nope", "", fmt.Errorf("%w: program nope", service.ErrNotFound), http.StatusNotFound},
		{"update missing", http.MethodPut, "/api/v1/programs/nope", lawnBody, fmt.Errorf("%w: program nope", service.ErrNotFound), http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/v1/programs/nope", "", fmt.Errorf("%w: program nope", service.ErrNotFound), http.StatusNotFound},
		{"run while running", http.MethodPost, "/api/v1/programs/p1/run", "", fmt.Errorf("%w: program %q is running", service.ErrConcurrency, "p0"), http.StatusConflict},
		{"stop idle", http.MethodPost, "/api/v1/programs/stop", "", service.ErrNotRunning, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			programs := &mockPrograms{err: tc.err}
			r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, Programs: programs})
			w := do(r, tc.method, tc.path, tc.body)
			if w.Code != tc.want {
				t.Fatalf("status=%d, want %d, body=%s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestProgramsHandler_UpdateUsesPathID(t *testing.T) {
	programs := &mockPrograms{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, Programs: programs})

	w := do(r, http.MethodPut, "/api/v1/programs/p42", lawnBody)
	if w.Code != http.StatusOK || programs.lastID != "p42" {
		t.Fatalf("status=%d id=%q", w.Code, programs.lastID)
	}
}

func TestProgramsHandler_RunStopState(t *testing.T) {
	programs := &mockPrograms{state: models.ExecutionState{Running: true, CurrentProgramID: "p1"}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, Programs: programs})

	w := do(r, http.MethodPost, "/api/v1/programs/p1/run", "")
	if w.Code != http.StatusAccepted || programs.runCalls != 1 || programs.lastID != "p1" {
		t.Fatalf("run status=%d calls=%d id=%q", w.Code, programs.runCalls, programs.lastID)
	}

	w = do(r, http.MethodGet, "/api/v1/programs/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("state status=%d", w.Code)
	}
	var st models.ExecutionState
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if !st.Running || st.CurrentProgramID != "p1" {
		t.Fatalf("unexpected state: %+v", st)
	}

	programs.state = models.ExecutionState{}
	w = do(r, http.MethodPost, "/api/v1/programs/stop", "")
	if w.Code != http.StatusOK || programs.stopCalls != 1 {
		t.Fatalf("stop status=%d calls=%d", w.Code, programs.stopCalls)
	}
}
