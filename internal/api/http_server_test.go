package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"campusbook/internal/config"
	"campusbook/internal/database"
	"campusbook/internal/events"
	"campusbook/internal/models"
	"campusbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey   = "test-key"
	testAPIExtra = "test-extra"
)

type stubMail struct {
	signatoryRequests   int
	directorEscalations int
}

func (m *stubMail) EnqueueSignatoryRequest(context.Context, *models.Booking, *models.Signatory) error {
	m.signatoryRequests++
	return nil
}

func (m *stubMail) EnqueueDirectorEscalation(context.Context, *models.Booking, *models.Reservation, *models.Signatory) error {
	m.directorEscalations++
	return nil
}

type allowAllGuard struct{}

func (allowAllGuard) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

type testEnv struct {
	db     *database.DB
	mail   *stubMail
	server *HTTPServer
	ts     *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.SeedFacilities(ctx, []models.Facility{
		{ID: 1, Name: "Auditorium", Capacity: 300, IsActive: true},
	}))
	require.NoError(t, db.SeedEquipment(ctx, []models.Equipment{
		{ID: 1, Name: "Projector", TotalQuantity: 4, IsActive: true},
	}))

	approvals := config.ApprovalsConfig{
		BaseURL:        "https://bookings.example.edu",
		PresidentEmail: "president@example.edu",
		DirectorEmail:  "director@example.edu",
		LinkRateLimit:  10,
		LinkRateWindow: 60,
	}
	mailStub := &stubMail{}
	nop := zerolog.Nop()
	svc := service.NewApprovalService(db, events.NewEventBus(), mailStub, nil, approvals, &nop)

	apiCfg := config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, Port: 0},
		Auth: config.APIAuthConfig{
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys:      []config.APIClientKey{{Key: testAPIKey, Extra: testAPIExtra, Name: "tests"}},
		},
	}

	server := NewHTTPServer(apiCfg, approvals, svc, nil, allowAllGuard{}, &nop)
	ts := httptest.NewServer(server.server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{db: db, mail: mailStub, server: server, ts: ts}
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("x-api-key", testAPIKey)
	req.Header.Set("x-api-extra", testAPIExtra)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func submitBody() map[string]any {
	return map[string]any{
		"requester_name":  "Ada Student",
		"requester_email": "ada@example.edu",
		"facility_id":     1,
		"starts_at":       "2026-09-10T09:00:00Z",
		"ends_at":         "2026-09-10T12:00:00Z",
		"purpose":         "Science fair",
		"participants":    80,
		"adviser_email":   "adviser@example.edu",
		"dean_email":      "dean@example.edu",
		"equipment":       []map[string]any{{"equipment_id": 1, "quantity": 2}},
	}
}

func (e *testEnv) submitBooking(t *testing.T) int64 {
	resp := e.doJSON(t, http.MethodPost, "/api/v1/bookings", submitBody())
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Booking models.Booking `json:"booking"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Booking.ID
}

func TestSubmitBookingEndpoint(t *testing.T) {
	env := newTestEnv(t)

	id := env.submitBooking(t)
	assert.NotZero(t, id)

	resp := env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", id), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Booking models.Booking `json:"booking"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, models.StatusPrebooking, body.Booking.Status)
	assert.Len(t, body.Booking.Equipment, 1)
}

func TestSubmitBookingValidation(t *testing.T) {
	env := newTestEnv(t)

	body := submitBody()
	body["ends_at"] = body["starts_at"]
	resp := env.doJSON(t, http.MethodPost, "/api/v1/bookings", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/api/v1/facilities")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthzIsPublic(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApproveFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	id := env.submitBooking(t)

	resp := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/approve", id), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Changed bool `json:"changed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Changed)

	// письма ушли советнику, декану и президенту, директор ждет эскалации
	assert.Equal(t, 3, env.mail.signatoryRequests)

	// повторное одобрение ничего не меняет
	resp2 := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/approve", id), nil)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body))
	assert.False(t, body.Changed)
}

func TestSignatoryLinkFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.submitBooking(t)

	resp := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/approve", id), nil)
	resp.Body.Close()

	reservation, err := env.db.GetReservationByBookingID(context.Background(), id)
	require.NoError(t, err)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	// правильный токен: редирект на страницу успеха
	adviser := reservation.SignatoryByRole(models.RoleAdviser)
	require.NotNil(t, adviser)
	linkResp, err := client.Get(fmt.Sprintf("%s/signatory-approval/%d?token=%s", env.ts.URL, adviser.ID, adviser.Token))
	require.NoError(t, err)
	linkResp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, linkResp.StatusCode)
	assert.Equal(t, "/approval/success", linkResp.Header.Get("Location"))

	// неправильный токен отклоняется без изменения состояния
	dean := reservation.SignatoryByRole(models.RoleDean)
	require.NotNil(t, dean)
	badResp, err := client.Get(fmt.Sprintf("%s/signatory-approval/%d?token=wrong", env.ts.URL, dean.ID))
	require.NoError(t, err)
	badResp.Body.Close()
	assert.Equal(t, http.StatusForbidden, badResp.StatusCode)

	got, err := env.db.GetSignatoryByID(context.Background(), dean.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SignatoryPending, got.Status)
}

func TestFullApprovalLadderOverLinks(t *testing.T) {
	env := newTestEnv(t)
	id := env.submitBooking(t)

	resp := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/approve", id), nil)
	resp.Body.Close()

	reservation, err := env.db.GetReservationByBookingID(context.Background(), id)
	require.NoError(t, err)

	for _, role := range []string{models.RoleAdviser, models.RoleDean, models.RoleSchoolPresident} {
		s := reservation.SignatoryByRole(role)
		require.NotNil(t, s)
		linkResp, err := http.Get(fmt.Sprintf("%s/signatory-approval/%d?token=%s", env.ts.URL, s.ID, s.Token))
		require.NoError(t, err)
		linkResp.Body.Close()
	}

	// все не-директора одобрили: ушла эскалация директору
	assert.Equal(t, 1, env.mail.directorEscalations)

	director := reservation.SignatoryByRole(models.RoleSchoolDirector)
	require.NotNil(t, director)
	linkResp, err := http.Get(fmt.Sprintf("%s/signatory-approval/%d?token=%s", env.ts.URL, director.ID, director.Token))
	require.NoError(t, err)
	linkResp.Body.Close()

	booking, err := env.db.GetBooking(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, booking.Status)
}

func TestFinalizeRequiresCompleteLedger(t *testing.T) {
	env := newTestEnv(t)
	id := env.submitBooking(t)

	// без единой подписи финализация отклоняется
	resp := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/finalize", id), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/approve", id), nil)
	resp.Body.Close()

	resp = env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/finalize", id), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	booking, err := env.db.GetBooking(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, booking.Status)
}

func TestDenialLinkShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	id := env.submitBooking(t)

	resp := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/approve", id), nil)
	resp.Body.Close()

	reservation, err := env.db.GetReservationByBookingID(context.Background(), id)
	require.NoError(t, err)
	dean := reservation.SignatoryByRole(models.RoleDean)
	require.NotNil(t, dean)

	linkResp, err := http.Get(fmt.Sprintf("%s/signatory-denial/%d?token=%s", env.ts.URL, dean.ID, dean.Token))
	require.NoError(t, err)
	linkResp.Body.Close()

	booking, err := env.db.GetBooking(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDenied, booking.Status)
	assert.Zero(t, env.mail.directorEscalations)
}

func TestAvailabilityEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.submitBooking(t)

	resp := env.doJSON(t, http.MethodGet, "/api/v1/availability/1?from=2026-09-10T10:00:00Z&to=2026-09-10T14:00:00Z", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var availability models.Availability
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&availability))
	assert.False(t, availability.Available)
	assert.Equal(t, int64(1), availability.Conflicts)
}

func TestCancelBookingEndpoint(t *testing.T) {
	env := newTestEnv(t)
	id := env.submitBooking(t)

	booking, err := env.db.GetBooking(context.Background(), id)
	require.NoError(t, err)

	// чужой пользователь не может отменить
	resp := env.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/v1/bookings/%d?requester_id=%d", id, booking.RequesterID+1), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/v1/bookings/%d?requester_id=%d", id, booking.RequesterID), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = env.db.GetBooking(context.Background(), id)
	assert.ErrorIs(t, err, database.ErrBookingNotFound)
}
