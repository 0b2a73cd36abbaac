package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/loyaltyledger/internal/catalog"
	ledgerDto "anoa.com/loyaltyledger/internal/modules/ledger/dto"
	ledgerRepo "anoa.com/loyaltyledger/internal/modules/ledger/repository"
	ledgerService "anoa.com/loyaltyledger/internal/modules/ledger/service"
	"anoa.com/loyaltyledger/internal/testutil"
	"anoa.com/loyaltyledger/pkg/clock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db := testutil.NewDB(t)
	clk := clock.NewManual(testutil.Day(2026, time.May, 4, 10))
	svc := ledgerService.NewLedgerService(db, ledgerRepo.NewLedgerRepository(db), nil, nil, catalog.Default(), clk, 3)
	h := NewLedgerHandler(svc)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/internal/events", h.RecordEvent)
	r.POST("/internal/events/course-completed", h.CourseCompleted)
	r.POST("/internal/transactions", h.ApplyTransaction)
	return r
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  ledgerDto.EntryResponse `json:"data"`
	Error string                  `json:"error"`
	Code  string                  `json:"code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRecordEvent(t *testing.T) {
	r := newRouter(t)
	userID := uuid.NewString()

	w := post(r, "/internal/events", map[string]any{
		"user_id":      userID,
		"source":       "ORDER_COMPLETE",
		"amount":       40,
		"description":  "Order completed",
		"reference_id": "order-1",
		"metadata":     map[string]any{"order_id": "order-1"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, int64(40), env.Data.Balance)
	assert.Equal(t, "EARNED", string(env.Data.Direction))

	w = post(r, "/internal/events", map[string]any{
		"user_id":      userID,
		"source":       "ORDER_COMPLETE",
		"amount":       40,
		"reference_id": "order-1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_EVENT", decode(t, w).Code)
}

func TestRecordEvent_Validation(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing user", map[string]any{"source": "REFERRAL", "amount": 5}},
		{"bad uuid", map[string]any{"user_id": "nope", "source": "REFERRAL", "amount": 5}},
		{"zero amount", map[string]any{"user_id": uuid.NewString(), "source": "REFERRAL", "amount": 0}},
		{"negative amount", map[string]any{"user_id": uuid.NewString(), "source": "REFERRAL", "amount": -3}},
		{"daily login is not an event", map[string]any{"user_id": uuid.NewString(), "source": "DAILY_LOGIN", "amount": 5}},
		{"redemption is not an event", map[string]any{"user_id": uuid.NewString(), "source": "REWARD_REDEMPTION", "amount": 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(r, "/internal/events", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_INPUT", decode(t, w).Code)
		})
	}
}

func TestCourseCompleted(t *testing.T) {
	r := newRouter(t)
	userID := uuid.NewString()

	w := post(r, "/internal/events/course-completed", map[string]any{
		"user_id":    userID,
		"course_id":  "k8s-101",
		"difficulty": "intermediate",
		"title":      "Kubernetes 101",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, int64(100), env.Data.Amount)
	assert.Equal(t, int64(50), env.Data.Points)
	assert.Equal(t, "Completed course: Kubernetes 101", env.Data.Description)

	w = post(r, "/internal/events/course-completed", map[string]any{"user_id": userID, "course_id": "k8s-101"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestApplyTransaction_InsufficientBalance(t *testing.T) {
	r := newRouter(t)
	userID := uuid.NewString()

	w := post(r, "/internal/transactions", map[string]any{
		"user_id": userID, "direction": "EARNED", "source": "ADJUSTMENT", "amount": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = post(r, "/internal/transactions", map[string]any{
		"user_id": userID, "direction": "REDEEMED", "source": "ADJUSTMENT", "amount": 11,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INSUFFICIENT_BALANCE", decode(t, w).Code)
}
