package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/forumposts/models"
	"github.com/cppla/forumposts/services"
	"github.com/cppla/forumposts/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusFor(t *testing.T) {
	nf := &services.NotFoundError{ID: "1", Op: "get post"}

	assert.Equal(t, http.StatusNotFound, StatusFor(nf))
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("wrapped: %w", nf)))
	assert.Equal(t, http.StatusBadRequest, StatusFor(models.NewValidationError("title", "is required")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
	// Text alone never selects 404.
	assert.Equal(t, http.StatusInternalServerError, StatusFor(fmt.Errorf("user not found")))
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	r.GET("/missing", func(ctx *gin.Context) {
		_ = ctx.Error(&services.NotFoundError{ID: "42", Op: "get post"})
	})
	r.GET("/ok", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body utils.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, utils.ErrorBody{
		Status:  "Not Found",
		Code:    404,
		Message: "post with id 42 not found (get post)",
		Path:    "/missing",
	}, body)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

type sample struct {
	Name  string   `json:"name" validate:"required"`
	Items []string `json:"items" validate:"omitempty,dive,required"`
}

func TestValidateJSON(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.POST("/", ValidateJSON[sample](), func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, Body[sample](ctx))
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"name":"x","extra":1}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"x","items":null}`, w.Body.String())

	w = post(`{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation error (name): is required")

	w = post(`{"name":"x","items":[""]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "items[0]")

	w = post(`not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateJSONRunsSelfValidation(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.PATCH("/", ValidateJSON[models.PostPatch](), func(ctx *gin.Context) {
		ctx.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"unknown":true}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"tags":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(4))
	r.GET("/", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	codes := []int{}
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	// Burst of two, then limited.
	assert.Equal(t, []int{200, 200, 429}, codes)
}
