package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"submission-backend/internal/shared/server/middleware"
)

func TestMeReturnsDirectoryRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := NewMemoryRepo()
	_ = repo.Upsert(context.Background(), User{ID: "u-1", Email: "u1@example.org", FullName: "Uma"})
	_ = repo.GrantRole(context.Background(), "u-1", "SeniorMoEOfficial")

	router := gin.New()
	router.Use(middleware.Auth("dev"))
	NewHandler(NewService(repo)).RegisterRoutes(router.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("X-User-Id", "u-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Email string   `json:"email"`
		Roles []string `json:"roles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Email != "u1@example.org" || len(body.Roles) != 1 || body.Roles[0] != "SeniorMoEOfficial" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMeFallsBackToTokenIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.Auth("dev"))
	NewHandler(NewService(NewMemoryRepo())).RegisterRoutes(router.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("X-User-Id", "dev-user")
	req.Header.Set("X-User-Roles", "DataProvider")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		ID    string   `json:"id"`
		Roles []string `json:"roles"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.ID != "dev-user" || len(body.Roles) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}
