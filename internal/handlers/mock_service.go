package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"irrigation_controller/internal/models"
	"irrigation_controller/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockZones struct {
	status   []models.ZoneStatus
	startErr error
	stopErr  error
	allErr   error

	lastStartID      int
	lastStartMinutes int
	lastStopID       int
	stopAllCalls     int
}

func (m *mockZones) StartZone(ctx context.Context, zoneID, minutes int) error {
	m.lastStartID = zoneID
	m.lastStartMinutes = minutes
	return m.startErr
}
func (m *mockZones) StopZone(ctx context.Context, zoneID int) error {
	m.lastStopID = zoneID
	return m.stopErr
}
func (m *mockZones) StopAllZones(ctx context.Context) error {
	m.stopAllCalls++
	return m.allErr
}
func (m *mockZones) ZonesStatus() []models.ZoneStatus { return m.status }
func (m *mockZones) ActiveZoneCount() int {
	n := 0
	for _, z := range m.status {
		if z.Active {
			n++
		}
	}
	return n
}

type mockPrograms struct {
	programs []models.Program
	program  models.Program
	state    models.ExecutionState
	err      error

	lastID      string
	lastProgram models.Program
	runCalls    int
	stopCalls   int
}

func (m *mockPrograms) ListPrograms(ctx context.Context) ([]models.Program, error) {
	return m.programs, m.err
}
func (m *mockPrograms) GetProgram(ctx context.Context, id string) (models.Program, error) {
	m.lastID = id
	return m.program, m.err
}
func (m *mockPrograms) CreateProgram(ctx context.Context, p models.Program) (models.Program, error) {
	m.lastProgram = p
	if m.err != nil {
		return models.Program{}, m.err
	}
	p.ID = "new-id"
	return p, nil
}
func (m *mockPrograms) UpdateProgram(ctx context.Context, id string, p models.Program) (models.Program, error) {
	m.lastID = id
	m.lastProgram = p
	if m.err != nil {
		return models.Program{}, m.err
	}
	p.ID = id
	return p, nil
}
func (m *mockPrograms) DeleteProgram(ctx context.Context, id string) error {
	m.lastID = id
	return m.err
}
func (m *mockPrograms) RunProgram(ctx context.Context, id string) error {
	m.lastID = id
	m.runCalls++
	return m.err
}
func (m *mockPrograms) StopProgram(ctx context.Context) error {
	m.stopCalls++
	return m.err
}
func (m *mockPrograms) State() models.ExecutionState { return m.state }

type mockSettings struct {
	current models.Settings
	err     error
	last    models.Settings
	resets  int
}

func (m *mockSettings) Get(ctx context.Context) models.Settings { return m.current }
func (m *mockSettings) Update(ctx context.Context, s models.Settings) (models.Settings, error) {
	m.last = s
	if m.err != nil {
		return models.Settings{}, m.err
	}
	m.current = s
	return s, nil
}
func (m *mockSettings) FactoryReset(ctx context.Context) (models.Settings, error) {
	m.resets++
	if m.err != nil {
		return models.Settings{}, m.err
	}
	m.current = models.FactorySettings()
	return m.current, nil
}

type mockMaintenance struct {
	err   error
	calls int
}

func (m *mockMaintenance) ResetAllData(ctx context.Context) error {
	m.calls++
	return m.err
}

type mockEventLog struct {
	resp      []models.Event
	err       error
	clearErr  error
	lastFrom  time.Time
	lastTo    time.Time
	lastLevel string
	cleared   bool
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastLevel = f.Level
	return m.resp, m.err
}

func (m *mockEventLog) Clear(ctx context.Context) error {
	m.cleared = true
	return m.clearErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// do sends an authenticated request with an optional JSON body.
func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
