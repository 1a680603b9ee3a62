package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/requestdata"
	"github.com/savoro/savoro-backend/internal/services"
	"github.com/savoro/savoro-backend/internal/types"
)

// stubRecommendationService overrides only what a test touches; anything
// else panics loudly through the embedded nil interface.
type stubRecommendationService struct {
	services.RecommendationService

	similar     []*types.Product
	similarErr  error
	tracked     []uuid.UUID
	trackedUser uuid.UUID
}

func (s *stubRecommendationService) GetSimilarProducts(_ context.Context, _ uuid.UUID, _ int) ([]*types.Product, error) {
	if s.similarErr != nil {
		return nil, s.similarErr
	}
	return s.similar, nil
}

func (s *stubRecommendationService) TrackInteraction(userID, productID uuid.UUID) {
	s.trackedUser = userID
	s.tracked = append(s.tracked, productID)
}

func newHandlerRouter(t *testing.T, stub *stubRecommendationService, userID uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	h := NewRecommendationHandler(log, stub)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(requestdata.WithRequestData(
			c.Request.Context(),
			&requestdata.RequestData{UserID: userID, Role: "customer"},
		))
	})
	router.GET("/api/products/:id/similar", h.GetSimilarProducts)
	router.POST("/api/interactions", h.TrackInteraction)
	return router
}

func TestGetSimilarProducts_InvalidIDIsBadRequest(t *testing.T) {
	router := newHandlerRouter(t, &stubRecommendationService{}, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/products/not-a-uuid/similar", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetSimilarProducts_UnknownProductIsNotFound(t *testing.T) {
	stub := &stubRecommendationService{similarErr: services.ErrProductNotFound}
	router := newHandlerRouter(t, stub, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/products/"+uuid.NewString()+"/similar", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTrackInteraction_CreatedAndForwardsIdentity(t *testing.T) {
	stub := &stubRecommendationService{}
	userID := uuid.New()
	productID := uuid.New()
	router := newHandlerRouter(t, stub, userID)

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"product_id":"` + productID.String() + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/interactions", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if stub.trackedUser != userID || len(stub.tracked) != 1 || stub.tracked[0] != productID {
		t.Fatalf("interaction not forwarded: user %s products %v", stub.trackedUser, stub.tracked)
	}
}

func TestTrackInteraction_MissingProductIDIsBadRequest(t *testing.T) {
	stub := &stubRecommendationService{}
	router := newHandlerRouter(t, stub, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/interactions", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(stub.tracked) != 0 {
		t.Fatalf("no interaction should be recorded on bad input")
	}
}
