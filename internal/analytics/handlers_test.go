package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

func TestHRZonesRoute(t *testing.T) {
	mock := newMock(t)
	app := fiber.New()
	RegisterRoutes(app.Group("/activities"), NewService(mock, nil))

	expectDistributionQueries(mock, "act-1")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/activities/act-1/hr-zones", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var dist Distribution
	if err := json.NewDecoder(resp.Body).Decode(&dist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dist.ActivityID != "act-1" || len(dist.Zones) != 5 {
		t.Fatalf("unexpected distribution %+v", dist)
	}
}

func TestHRZonesRouteNotFound(t *testing.T) {
	mock := newMock(t)
	app := fiber.New()
	RegisterRoutes(app.Group("/activities"), NewService(mock, nil))

	mock.ExpectQuery(`SELECT user_id, start_time FROM activities`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/activities/missing/hr-zones", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
