package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/directdebit/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLine struct {
	Name   string `json:"name" binding:"required,max=35"`
	Amount int    `json:"amount" binding:"gt=0"`
}

type testRequest struct {
	Reference string     `json:"reference" binding:"required,max=8"`
	Flavor    string     `json:"flavor" binding:"omitempty,oneof=pain.008.001.02 pain.008.001.03"`
	Lines     []testLine `json:"lines" binding:"required,min=1,dive"`
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req testRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	post := func(t *testing.T, body string) (int, dto.Response) {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp dto.Response
		if w.Body.Len() > 0 {
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		}
		return w.Code, resp
	}

	t.Run("reports json field paths", func(t *testing.T) {
		code, resp := post(t, `{"reference": "SDD-2025-0042", "flavor": "pain.001", "lines": [{"name": "", "amount": 0}]}`)
		assert.Equal(t, http.StatusBadRequest, code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-42", resp.Error.RequestID)

		messages := map[string]string{}
		for _, d := range resp.Error.Details {
			messages[d.Field] = d.Message
		}
		assert.Equal(t, "Must be at most 8 characters", messages["reference"])
		assert.Equal(t, "Must be one of: pain.008.001.02 pain.008.001.03", messages["flavor"])
		assert.Equal(t, "This field is required", messages["lines[0].name"])
		assert.Equal(t, "Must be greater than 0", messages["lines[0].amount"])
	})

	t.Run("empty slice", func(t *testing.T) {
		_, resp := post(t, `{"reference": "SDD-1", "lines": []}`)
		require.NotNil(t, resp.Error)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "lines", resp.Error.Details[0].Field)
		assert.Equal(t, "Must contain at least 1 items", resp.Error.Details[0].Message)
	})

	t.Run("malformed json is a bad request", func(t *testing.T) {
		code, resp := post(t, `{"reference": `)
		assert.Equal(t, http.StatusBadRequest, code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
		assert.Empty(t, resp.Error.Details)
	})

	t.Run("valid input", func(t *testing.T) {
		code, _ := post(t, `{"reference": "SDD-1", "lines": [{"name": "L1", "amount": 5}]}`)
		assert.Equal(t, http.StatusOK, code)
	})
}
