package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tournament-registration/internal/database"
	"github.com/iliyamo/tournament-registration/internal/handler"
	"github.com/iliyamo/tournament-registration/internal/model"
	"github.com/iliyamo/tournament-registration/internal/repository"
	"github.com/iliyamo/tournament-registration/internal/router"
	"github.com/iliyamo/tournament-registration/internal/service"
	"github.com/iliyamo/tournament-registration/internal/utils"
)

const secret = "handler-test-secret"

type server struct {
	e     *echo.Echo
	users *repository.UserRepo
	seq   int
}

func newServer(t *testing.T) *server {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := repository.NewUserRepo(db)
	tournamentRepo := repository.NewTournamentRepo(db)
	registrationRepo := repository.NewRegistrationRepo(db)
	statsRepo := repository.NewStatsRepo(db)

	ledger := service.NewLedger(db, tournamentRepo, registrationRepo, users)
	tournaments := service.NewTournamentService(db, tournamentRepo, registrationRepo, statsRepo, ledger)
	sh := &handler.StatsHandler{
		Reporter:   service.NewReporter(statsRepo, 5*time.Minute),
		Aggregator: service.NewAggregator(statsRepo),
	}
	th := handler.NewTournamentHandler(tournaments)
	rh := handler.NewRegistrationHandler(ledger)

	e := echo.New()
	router.RegisterRoutes(e, &handler.HealthHandler{DB: db})
	router.RegisterPublic(e, th, nil)
	router.RegisterParticipant(e, rh, secret, nil, nil)
	router.RegisterOrganizer(e, th, rh, sh, secret, nil)
	router.RegisterAdmin(e, sh, secret)
	return &server{e: e, users: users}
}

// user provisions an account and returns a bearer token for it.
func (s *server) user(t *testing.T, role string) (uint64, string) {
	t.Helper()
	s.seq++
	id, err := s.users.Create(context.Background(), fmt.Sprintf("u%d@example.com", s.seq), fmt.Sprintf("User %d", s.seq), role, time.Now())
	require.NoError(t, err)
	tok, err := utils.NewAccessToken(secret, id, role, 15)
	require.NoError(t, err)
	return id, tok.Token
}

func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *server) createTournament(t *testing.T, token, name string, capacity int, fee int64) uint64 {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/tournaments", token, map[string]any{
		"name":             name,
		"sport_type":       "tennis",
		"location":         "Court 1",
		"start_date":       time.Now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339),
		"max_participants": capacity,
		"entry_fee_cents":  fee,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint64(decode(t, rec)["id"].(float64))
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTournamentBrowse(t *testing.T) {
	s := newServer(t)
	_, org := s.user(t, model.RoleOrganizer)
	id := s.createTournament(t, org, "City Chess Open", 8, 2500)

	rec := s.do(t, http.MethodGet, "/v1/tournaments?sport_type=tennis", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["total"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	first := items[0].(map[string]any)
	assert.Equal(t, "city-chess-open", first["slug"])
	assert.EqualValues(t, 8, first["spots_left"])

	rec = s.do(t, http.MethodGet, "/v1/tournaments/slug/city-chess-open", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, id, decode(t, rec)["id"])

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/tournaments/%d", id), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["participant_count"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/tournaments/999", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/v1/tournaments/abc", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/v1/tournaments?sport_type=curling", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/v1/tournaments?page_size=500", "", nil).Code)
}

func TestTournamentManagementRequiresOrganizer(t *testing.T) {
	s := newServer(t)
	_, user := s.user(t, model.RoleUser)
	_, org := s.user(t, model.RoleOrganizer)
	_, other := s.user(t, model.RoleOrganizer)

	rec := s.do(t, http.MethodPost, "/v1/tournaments", user, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/v1/tournaments", "", map[string]any{}).Code)

	rec = s.do(t, http.MethodPost, "/v1/tournaments", org, map[string]any{"name": "", "sport_type": "curling"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Contains(t, body["fields"], "sport_type")

	id := s.createTournament(t, org, "Harbour Cup", 4, 0)
	path := fmt.Sprintf("/v1/tournaments/%d", id)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, path, other, map[string]any{"name": "Stolen"}).Code)

	rec = s.do(t, http.MethodPatch, path, org, map[string]any{"max_participants": 6})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 6, decode(t, rec)["max_participants"])

	rec = s.do(t, http.MethodPatch, path+"/status", org, map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_STATE", decode(t, rec)["code"])

	rec = s.do(t, http.MethodPatch, path+"/status", org, map[string]any{"status": "ongoing"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ongoing", decode(t, rec)["status"])

	rec = s.do(t, http.MethodDelete, path, org, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["soft"])
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, "", nil).Code)
}

func TestRegistrationFlow(t *testing.T) {
	s := newServer(t)
	_, org := s.user(t, model.RoleOrganizer)
	_, alice := s.user(t, model.RoleUser)
	_, bob := s.user(t, model.RoleUser)
	_, admin := s.user(t, model.RoleAdmin)
	tid := s.createTournament(t, org, "Autumn Open", 1, 5000)
	regPath := fmt.Sprintf("/v1/tournaments/%d/registrations", tid)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, regPath, "", map[string]any{}).Code)

	rec := s.do(t, http.MethodPost, regPath, alice, map[string]any{"profile": map[string]any{"fullName": "Alice"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["fields"], "agreeTerms")

	rec = s.do(t, http.MethodPost, regPath, alice, map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode(t, rec)
	assert.EqualValues(t, 1, res["participant_count"])
	reg := res["registration"].(map[string]any)
	assert.Equal(t, "pending", reg["registration_status"])
	rid := uint64(reg["id"].(float64))

	rec = s.do(t, http.MethodPost, regPath, alice, map[string]any{})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_REGISTERED", decode(t, rec)["code"])

	rec = s.do(t, http.MethodPost, regPath, bob, map[string]any{})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "TOURNAMENT_FULL", decode(t, rec)["code"])

	// only the registrant, the organizer and admins can see the row
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, fmt.Sprintf("/v1/registrations/%d", rid), bob, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, fmt.Sprintf("/v1/registrations/%d", rid), org, nil).Code)

	payPath := fmt.Sprintf("/v1/registrations/%d/payment", rid)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, payPath, alice, map[string]any{}).Code)
	rec = s.do(t, http.MethodPost, payPath, alice, map[string]any{"amount_paid_cents": 5000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decode(t, rec)
	assert.Equal(t, "confirmed", paid["registration_status"])
	assert.Equal(t, "completed", paid["payment_status"])

	rec = s.do(t, http.MethodGet, "/v1/my-registrations", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)

	rec = s.do(t, http.MethodGet, "/v1/organizer/stats", org, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode(t, rec)
	assert.EqualValues(t, 5000, st["total_revenue_cents"])
	assert.EqualValues(t, 1, st["total_registrations"])

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/admin/tournaments/%d/consistency", tid), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["consistency"].(map[string]any)["consistent"])
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/v1/admin/stats", org, nil).Code)

	cancelPath := fmt.Sprintf("/v1/registrations/%d/cancel", rid)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, cancelPath, alice, nil).Code)
	rec = s.do(t, http.MethodPost, cancelPath, org, map[string]any{"reason": "withdrew"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode(t, rec)["registration_status"])
	rec = s.do(t, http.MethodPost, cancelPath, org, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// the slot is free again
	rec = s.do(t, http.MethodPost, regPath, bob, map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total_registrations"])
}

func TestPaymentFailedAndCompletedTournament(t *testing.T) {
	s := newServer(t)
	_, org := s.user(t, model.RoleOrganizer)
	_, alice := s.user(t, model.RoleUser)
	tid := s.createTournament(t, org, "Winter Series", 4, 1000)

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/v1/tournaments/%d/registrations", tid), alice, map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code)
	rid := uint64(decode(t, rec)["registration"].(map[string]any)["id"].(float64))

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/v1/registrations/%d/payment-failed", rid), org, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "failed", decode(t, rec)["payment_status"])

	// a later successful payment still confirms the registration
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/v1/registrations/%d/payment", rid), alice, map[string]any{"amount_paid_cents": 1000})
	require.Equal(t, http.StatusOK, rec.Code)

	status := fmt.Sprintf("/v1/tournaments/%d/status", tid)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPatch, status, org, map[string]any{"status": "ongoing"}).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPatch, status, org, map[string]any{"status": "completed"}).Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/v1/tournaments/%d/registrations", tid), org, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "completed", items[0].(map[string]any)["registration_status"])

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/v1/registrations/%d/cancel", rid), org, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
