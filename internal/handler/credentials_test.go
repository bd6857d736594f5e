package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCredentialHandler_PostCredential(t *testing.T) {
	t.Run("success - credential is created", func(t *testing.T) {
		// arrange
		mockService := new(testutil.MockCredentialService)
		mockService.On(
			"CreateCredential", mock.Anything,
			"AKIAEXAMPLE", "deploy account", "super-secret",
		).Return(&store.Credential{
			CredentialID: 1,
			AccessKeyID:  "AKIAEXAMPLE",
			Description:  "deploy account",
		}, nil)

		body := `{
			"access_key_id": "AKIAEXAMPLE",
			"description": "deploy account",
			"secret_access_key": "super-secret"
		}`
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/credentials", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		h := NewCredentialHandler(mockService)

		// act
		err := h.PostCredential(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		var created store.Credential
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "AKIAEXAMPLE", created.AccessKeyID)
		assert.Empty(t, created.SecretAccessKeyHash)
	})

	t.Run("fail - store error", func(t *testing.T) {
		// arrange
		mockService := new(testutil.MockCredentialService)
		mockService.On(
			"CreateCredential", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
		).Return(nil, assert.AnError)

		body := `{"access_key_id": "AKIAEXAMPLE"}`
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/credentials", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		h := NewCredentialHandler(mockService)

		// act
		err := h.PostCredential(c)

		// assert
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusInternalServerError, he.Code)
	})
}

func TestCredentialHandler_GetCredential(t *testing.T) {
	t.Run("success - credential found", func(t *testing.T) {
		// arrange
		cred := generateCredential()
		mockService := new(testutil.MockCredentialService)
		mockService.On("GetCredentialByID", mock.Anything, cred.CredentialID).
			Return(cred, nil)

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodGet, fmt.Sprintf("/api/credentials/%d", cred.CredentialID), nil,
		)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("credential_id")
		c.SetParamValues(fmt.Sprintf("%d", cred.CredentialID))
		h := NewCredentialHandler(mockService)

		// act
		err := h.GetCredential(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		var got store.Credential
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, cred.AccessKeyID, got.AccessKeyID)
	})

	t.Run("fail - credential not found", func(t *testing.T) {
		// arrange
		mockService := new(testutil.MockCredentialService)
		mockService.On("GetCredentialByID", mock.Anything, int64(1)).
			Return(nil, sql.ErrNoRows)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/credentials/1", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("credential_id")
		c.SetParamValues("1")
		h := NewCredentialHandler(mockService)

		// act
		err := h.GetCredential(c)

		// assert
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})
}

func TestCredentialHandler_GetCredentials(t *testing.T) {
	t.Run("success - credentials listed", func(t *testing.T) {
		// arrange
		cred := generateCredential()
		mockService := new(testutil.MockCredentialService)
		mockService.On("ListCredentials", mock.Anything).
			Return([]*store.Credential{cred}, nil)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/credentials", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		h := NewCredentialHandler(mockService)

		// act
		err := h.GetCredentials(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		var got []*store.Credential
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 1)
	})
}

func TestCredentialHandler_DeleteCredential(t *testing.T) {
	t.Run("success - credential is deleted", func(t *testing.T) {
		// arrange
		cred := generateCredential()
		mockService := new(testutil.MockCredentialService)
		mockService.On("GetCredentialByID", mock.Anything, cred.CredentialID).
			Return(cred, nil)
		mockService.On("DeleteCredential", mock.Anything, cred.CredentialID).
			Return(nil)

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodDelete, fmt.Sprintf("/api/credentials/%d", cred.CredentialID), nil,
		)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("credential_id")
		c.SetParamValues(fmt.Sprintf("%d", cred.CredentialID))
		h := NewCredentialHandler(mockService)

		// act
		err := h.DeleteCredential(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("fail - zero credential id", func(t *testing.T) {
		// arrange
		e := echo.New()
		req := httptest.NewRequest(http.MethodDelete, "/api/credentials/0", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("credential_id")
		c.SetParamValues("0")
		h := NewCredentialHandler(new(testutil.MockCredentialService))

		// act
		err := h.DeleteCredential(c)

		// assert
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})
}

func generateCredential() *store.Credential {
	return &store.Credential{
		CredentialID: rand.Int63(),
		AccessKeyID:  "AKIAEXAMPLE",
		Description:  "deploy account",
	}
}
