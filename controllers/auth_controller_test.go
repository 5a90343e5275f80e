package controllers

import (
	"net/http"
	"testing"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/kendall-kelly/triloka-construction-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	db, _ := setupTestEnv(t)
	testutil.CreateClient(t, db, "taken@example.com")

	router := setupTestRouter()
	router.POST("/register", Register)

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "Register client successfully",
			body: map[string]string{
				"name": "Budi Santoso", "email": "Budi@Example.com",
				"password": "password123", "password_confirmation": "password123",
				"company_name": "PT Maju",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Fail with duplicate email",
			body: map[string]string{
				"name": "Someone", "email": "taken@example.com",
				"password": "password123", "password_confirmation": "password123",
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "USER_EXISTS",
		},
		{
			name: "Fail with mismatched confirmation",
			body: map[string]string{
				"name": "Someone", "email": "new@example.com",
				"password": "password123", "password_confirmation": "password124",
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performJSON(t, router, http.MethodPost, "/register", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, responseError(t, w)["code"])
				return
			}

			data := responseData(t, w)
			assert.NotEmpty(t, data["token"])
			assert.Equal(t, "Bearer", data["token_type"])
			user := data["user"].(map[string]interface{})
			assert.Equal(t, "budi@example.com", user["email"])
			assert.Equal(t, models.RoleClient, user["role"])
			assert.NotContains(t, user, "password_hash")
		})
	}
}

func TestLogin(t *testing.T) {
	db, _ := setupTestEnv(t)
	testutil.CreateClient(t, db, "client@example.com")
	testutil.CreateAdmin(t, db)

	router := setupTestRouter()
	router.POST("/login", Login)
	router.POST("/admin/login", AdminLogin)

	w := performJSON(t, router, http.MethodPost, "/login", map[string]string{"email": "client@example.com", "password": testutil.TestPassword})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, responseData(t, w)["token"])

	w = performJSON(t, router, http.MethodPost, "/login", map[string]string{"email": "client@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", responseError(t, w)["code"])

	w = performJSON(t, router, http.MethodPost, "/admin/login", map[string]string{"email": "client@example.com", "password": testutil.TestPassword})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performJSON(t, router, http.MethodPost, "/admin/login", map[string]string{"email": "admin@example.com", "password": testutil.TestPassword})
	assert.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "admin_session", cookies[0].Name)
	assert.Equal(t, responseData(t, w)["token"], cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLogin_InactiveAccount(t *testing.T) {
	db, _ := setupTestEnv(t)
	client := testutil.CreateClient(t, db, "client@example.com")
	require.NoError(t, db.Model(client).Update("is_active", false).Error)

	router := setupTestRouter()
	router.POST("/login", Login)

	w := performJSON(t, router, http.MethodPost, "/login", map[string]string{"email": "client@example.com", "password": testutil.TestPassword})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCOUNT_INACTIVE", responseError(t, w)["code"])
}

func TestExternalLogin(t *testing.T) {
	db, _ := setupTestEnv(t)
	existing := testutil.CreateClient(t, db, "linked@example.com")

	router := setupTestRouter()
	router.POST("/auth/external", ExternalLogin)

	services.SetIdentityVerifier(nil)
	w := performJSON(t, router, http.MethodPost, "/auth/external", map[string]string{"id_token": "anything"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EXTERNAL_LOGIN_DISABLED", responseError(t, w)["code"])

	verifier := services.NewMockIdentityVerifier()
	verifier.Identities["token-linked"] = &services.ExternalIdentity{Subject: "google|1", Email: "linked@example.com", EmailVerified: true}
	verifier.Identities["token-new"] = &services.ExternalIdentity{Subject: "google|2", Email: "new@example.com", Name: "New Client", EmailVerified: true}
	services.SetIdentityVerifier(verifier)
	t.Cleanup(func() { services.SetIdentityVerifier(nil) })

	w = performJSON(t, router, http.MethodPost, "/auth/external", map[string]string{"id_token": "token-linked"})
	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())
	user := responseData(t, w)["user"].(map[string]interface{})
	assert.Equal(t, float64(existing.ID), user["id"])

	w = performJSON(t, router, http.MethodPost, "/auth/external", map[string]string{"id_token": "token-new"})
	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())
	user = responseData(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "New Client", user["name"])
	assert.Equal(t, models.RoleClient, user["role"])

	w = performJSON(t, router, http.MethodPost, "/auth/external", map[string]string{"id_token": "forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", responseError(t, w)["code"])
}

func TestProfileAndPassword(t *testing.T) {
	db, _ := setupTestEnv(t)
	client := testutil.CreateClient(t, db, "client@example.com")

	router := setupTestRouter()
	router.GET("/user", mockAuthMiddleware(client), GetCurrentUser)
	router.PUT("/user/profile", mockAuthMiddleware(client), UpdateProfile)
	router.PUT("/user/password", mockAuthMiddleware(client), ChangePassword)
	router.POST("/login", Login)

	w := performJSON(t, router, http.MethodGet, "/user", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client@example.com", responseData(t, w)["email"])

	w = performJSON(t, router, http.MethodPut, "/user/profile", map[string]string{"phone": "0812345678", "company_name": "CV Bangun"})
	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())
	data := responseData(t, w)
	assert.Equal(t, "0812345678", data["phone"])
	assert.Equal(t, "CV Bangun", data["company_name"])

	w = performJSON(t, router, http.MethodPut, "/user/password", map[string]string{
		"current_password": "wrong-password", "password": "newpassword1", "password_confirmation": "newpassword1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, responseError(t, w)["details"], "current_password")

	w = performJSON(t, router, http.MethodPut, "/user/password", map[string]string{
		"current_password": testutil.TestPassword, "password": "newpassword1", "password_confirmation": "newpassword1",
	})
	assert.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	w = performJSON(t, router, http.MethodPost, "/login", map[string]string{"email": "client@example.com", "password": "newpassword1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetCurrentUser_Unauthenticated(t *testing.T) {
	setupTestEnv(t)
	router := setupTestRouter()
	router.GET("/user", GetCurrentUser)

	w := performJSON(t, router, http.MethodGet, "/user", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", responseError(t, w)["code"])
}
