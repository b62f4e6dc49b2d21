package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/triagify/triagify-backend/internal/config"
	"github.com/triagify/triagify-backend/internal/handler"
	"github.com/triagify/triagify-backend/internal/model"
	"github.com/triagify/triagify-backend/internal/utils"
)

const secret = "router-secret"

func testServer(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := config.Config{JWTSecret: secret, CORSOrigins: []string{"*"}}
	e := New(zerolog.Nop(), cfg)
	RegisterRoutes(e, &handler.ReadyHandler{})
	RegisterAuth(e, &handler.AuthHandler{}, &handler.ProfileHandler{}, cfg, nil)
	RegisterScreening(e, &handler.ScreeningHandler{}, &handler.QuestionHandler{}, cfg, nil)
	RegisterPatients(e, &handler.PatientHandler{}, secret)
	RegisterAdmin(e, &handler.AdminHandler{}, secret)
	return e
}

func bearer(t *testing.T, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, utils.Identity{UserID: "u1", Role: string(role)}, 5)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok.Token
}

func TestRoutesRegistered(t *testing.T) {
	e := testServer(t)
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /register", "POST /login", "POST /forgot-password", "POST /reset-password",
		"GET /api/profile/me", "POST /api/screening/start", "GET /api/screening/questions",
		"POST /api/screening/:id/answers", "POST /api/screenings/:id/upload-exam",
		"GET /api/screenings/pending-review", "GET /api/screenings/reviewed-today-count",
		"PATCH /api/screenings/:id/review", "GET /api/patients", "DELETE /api/questions/:id",
		"POST /api/admin/create-screening", "POST /api/admin/associate", "POST /api/admin/disassociate",
	} {
		if !have[want] {
			t.Errorf("route %q not registered", want)
		}
	}
}

func TestGates(t *testing.T) {
	e := testServer(t)

	cases := []struct {
		name, method, path, auth string
		want                     int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"ready without checks", http.MethodGet, "/readyz", "", http.StatusOK},
		{"no token", http.MethodGet, "/api/patient/screenings", "", http.StatusForbidden},
		{"garbage token", http.MethodGet, "/api/patient/screenings", "Bearer nope", http.StatusUnauthorized},
		{"admin route as doctor", http.MethodGet, "/api/admin/users", bearer(t, model.RoleDoctor), http.StatusForbidden},
		{"doctor route as patient", http.MethodGet, "/api/screenings/pending-review", bearer(t, model.RolePatient), http.StatusForbidden},
		{"start as doctor", http.MethodPost, "/api/screening/start", bearer(t, model.RoleDoctor), http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.auth != "" {
			req.Header.Set(echo.HeaderAuthorization, tc.auth)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestScreeningScopedQuestionsSkipCache(t *testing.T) {
	e := echo.New()
	for target, want := range map[string]bool{
		"/api/screening/questions":                false,
		"/api/screening/questions?screeningId=s1": true,
	} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		if got := screeningScoped(c); got != want {
			t.Errorf("%s: screeningScoped = %v, want %v", target, got, want)
		}
	}
}
