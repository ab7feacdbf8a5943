package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms/backend/internal/interfaces/http/dto"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	assert.NotNil(t, v)
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()

	type registerRequest struct {
		CarrierCode string `json:"carrier_code" binding:"required,oneof=SHIPROCKET DELHIVERY"`
		Name        string `json:"name" binding:"required,min=3"`
	}

	router := gin.New()
	router.POST("/transporters", func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusCreated)
	})

	t.Run("reports one detail per failed field using json names", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/transporters", strings.NewReader(`{"carrier_code":"BLUEDART","name":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidationFailed, resp.Error.Code)
		assert.Equal(t, "Request validation failed", resp.Error.Message)

		details, ok := resp.Error.Details.([]any)
		require.True(t, ok)
		require.Len(t, details, 2)
		fields := make([]string, 0, 2)
		for _, d := range details {
			entry := d.(map[string]any)
			fields = append(fields, entry["field"].(string))
		}
		assert.ElementsMatch(t, []string{"carrier_code", "name"}, fields)
	})

	t.Run("passes a valid payload through", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/transporters", strings.NewReader(`{"carrier_code":"SHIPROCKET","name":"Shiprocket Prod"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("non-validator errors yield an empty details list", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/transporters", strings.NewReader(`{not json`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidationFailed, resp.Error.Code)
		assert.Nil(t, resp.Error.Details)
	})
}

func TestValidationMessage(t *testing.T) {
	type subject struct {
		Required string `validate:"required"`
		Email    string `validate:"omitempty,email"`
		Min      string `validate:"omitempty,min=5"`
		Max      string `validate:"max=3"`
		UUID     string `validate:"omitempty,uuid"`
		OneOf    string `validate:"omitempty,oneof=ORDER INVENTORY SETTLEMENT"`
		URL      string `validate:"omitempty,url"`
	}

	v := validator.New()
	err := v.Struct(subject{
		Email: "nope",
		Min:   "ab",
		Max:   "toolong",
		UUID:  "nope",
		OneOf: "REVIEWS",
		URL:   "::::",
	})
	require.Error(t, err)

	expected := map[string]string{
		"Required": "This field is required",
		"Email":    "Invalid email format",
		"Min":      "Must be at least 5 characters",
		"Max":      "Must be at most 3 characters",
		"UUID":     "Invalid UUID format",
		"OneOf":    "Must be one of: ORDER INVENTORY SETTLEMENT",
		"URL":      "Invalid URL format",
	}

	validationErrs := err.(validator.ValidationErrors)
	seen := make(map[string]bool)
	for _, e := range validationErrs {
		want, ok := expected[e.StructField()]
		require.True(t, ok, "unexpected failed field %s", e.StructField())
		assert.Equal(t, want, validationMessage(e))
		seen[e.StructField()] = true
	}
	assert.Len(t, seen, len(expected))
}
