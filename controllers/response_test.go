package controllers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/stretchr/testify/assert"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"not found", services.NotFound("INVOICE_NOT_FOUND", "Invoice not found"), http.StatusNotFound, "INVOICE_NOT_FOUND"},
		{"forbidden", services.Forbidden("no"), http.StatusForbidden, "FORBIDDEN"},
		{"validation", services.Validation(map[string]string{"amount": "is required"}), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"rule", services.RuleViolation("REQUEST_LOCKED", "locked"), http.StatusBadRequest, "REQUEST_LOCKED"},
		{"conflict", services.Conflict("USER_EXISTS", "taken"), http.StatusConflict, "USER_EXISTS"},
		{"unauthorized", services.Unauthorized("INVALID_CREDENTIALS", "bad"), http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"internal", services.Internal("Failed", errors.New("disk full")), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/fail", func(c *gin.Context) { respondError(c, tt.err) })

			w := performRequest(router, http.MethodGet, "/fail", nil, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			errorData := responseError(t, w)
			assert.Equal(t, tt.expectedCode, errorData["code"])
		})
	}
}

func TestRespondError_ValidationDetails(t *testing.T) {
	router := setupTestRouter()
	router.GET("/fail", func(c *gin.Context) {
		respondError(c, services.Validation(map[string]string{"items[0].quantity": "must be greater than 0"}))
	})

	w := performRequest(router, http.MethodGet, "/fail", nil, "")

	errorData := responseError(t, w)
	details, ok := errorData["details"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "must be greater than 0", details["items[0].quantity"])
}

func TestBindJSON_ReportsFieldNames(t *testing.T) {
	router := setupTestRouter()
	router.POST("/register", func(c *gin.Context) {
		var req RegisterRequest
		if bindJSON(c, &req) {
			respondOK(c, http.StatusOK, nil)
		}
	})

	w := performJSON(t, router, http.MethodPost, "/register", map[string]string{
		"name":                  "Budi",
		"email":                 "not-an-email",
		"password":              "short",
		"password_confirmation": "different",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errorData := responseError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", errorData["code"])
	details := errorData["details"].(map[string]interface{})
	assert.Equal(t, "must be a valid email address", details["email"])
	assert.Equal(t, "must be at least 8 characters", details["password"])
	assert.Contains(t, details, "password_confirmation")
}

func TestParseDate(t *testing.T) {
	for _, raw := range []string{"2026-03-09", "2026-03-09T10:30:00", "2026-03-09T10:30:00+07:00"} {
		parsed, err := parseDate(raw)
		assert.NoError(t, err, raw)
		assert.Equal(t, 2026, parsed.Year())
		assert.Equal(t, 9, parsed.Day())
	}

	_, err := parseDate("09/03/2026")
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	router := setupTestRouter()
	router.GET("/items/:id", func(c *gin.Context) {
		if id, ok := parseID(c, "id"); ok {
			respondOK(c, http.StatusOK, id)
		}
	})

	assert.Equal(t, http.StatusOK, performRequest(router, http.MethodGet, "/items/12", nil, "").Code)
	for _, bad := range []string{"0", "abc", "-1"} {
		w := performRequest(router, http.MethodGet, "/items/"+bad, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
		assert.Equal(t, "INVALID_ID", responseError(t, w)["code"])
	}
}
