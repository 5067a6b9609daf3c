package auth_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Kyz7/blog/internal/auth"
	"github.com/Kyz7/blog/internal/models"
	"github.com/Kyz7/blog/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "Secret@Pass123"

func login(t *testing.T, env *testutils.TestEnv, email, token string) (string, string) {
	t.Helper()
	resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/login", map[string]interface{}{
		"email":    email,
		"password": password,
	}, token)
	require.NoError(t, err)
	result := testutils.AssertSuccess(t, resp, http.StatusOK)

	data := result.DataMap()
	return data["accessToken"].(string), data["refreshToken"].(string)
}

func TestLoginHandler(t *testing.T) {
	env := testutils.SetupTestApp(t)
	user := testutils.CreateTestUser(t, env.DB, "ana@blog.test", password, models.RoleAuthor)

	t.Run("Success - Tokens verify and refresh token is stored", func(t *testing.T) {
		access, refresh := login(t, env, "ANA@blog.test", "")

		claims, err := env.Issuer.ParseAccessToken(access)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.ID)
		assert.Equal(t, models.RoleAuthor, claims.Role)

		_, err = env.Issuer.ParseRefreshToken(refresh)
		require.NoError(t, err)

		var stored models.User
		require.NoError(t, env.DB.First(&stored, user.ID).Error)
		require.NotNil(t, stored.RefreshToken)
		assert.Equal(t, refresh, *stored.RefreshToken)
	})

	t.Run("Success - Re-login revokes the presented token", func(t *testing.T) {
		first, _ := login(t, env, user.Email, "")
		second, _ := login(t, env, user.Email, first)
		assert.NotEqual(t, first, second)

		resp, err := testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, first)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusUnauthorized, "REVOKED")

		resp, err = testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, second)
		assert.NoError(t, err)
		testutils.AssertSuccess(t, resp, http.StatusOK)
	})

	t.Run("Error - Wrong password", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/login", map[string]interface{}{
			"email":    user.Email,
			"password": "Wrong@Pass123",
		}, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusUnauthorized, "INVALID_CREDENTIALS")
	})

	t.Run("Error - Unknown field", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/login", map[string]interface{}{
			"email":    user.Email,
			"password": password,
			"remember": true,
		}, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")
	})
}

func TestLoginAccountState(t *testing.T) {
	env := testutils.SetupTestApp(t)
	inactive := testutils.CreateTestUser(t, env.DB, "gone@blog.test", password, models.RoleAuthor)
	require.NoError(t, env.DB.Model(inactive).Update("active", false).Error)

	t.Run("Error - Unknown user", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/login", map[string]interface{}{
			"email":    "nobody@blog.test",
			"password": password,
		}, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("Error - Deactivated user", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/login", map[string]interface{}{
			"email":    inactive.Email,
			"password": password,
		}, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("Error - Missing fields", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/login", map[string]interface{}{}, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")
	})
}

func TestAuthenticate(t *testing.T) {
	env := testutils.SetupTestApp(t)
	user := testutils.CreateTestUser(t, env.DB, "ana@blog.test", password, models.RoleAuthor)
	refresh := testutils.StoreRefreshToken(t, env.DB, env.Issuer, user)

	t.Run("Success - Fresh token carries no refresh", func(t *testing.T) {
		token := testutils.GetAuthToken(t, env.Issuer, user, 0)
		resp, err := testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, token)
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		assert.Nil(t, result.TokenRefresh)
		profile := result.DataMap()["user"].(map[string]interface{})
		assert.Equal(t, user.Email, profile["email"])
	})

	t.Run("Success - Token close to expiry is renewed", func(t *testing.T) {
		token := testutils.GetAuthToken(t, env.Issuer, user, -12*time.Minute)
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/check-auth", nil, token)
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		require.NotNil(t, result.TokenRefresh)
		assert.NotEqual(t, token, result.TokenRefresh.NewAccessToken)
		assert.Equal(t, int(auth.AccessTokenTTL.Seconds()), result.TokenRefresh.ExpiresIn)

		_, err = env.Issuer.ParseAccessToken(result.TokenRefresh.NewAccessToken)
		assert.NoError(t, err)
	})

	t.Run("Success - Token close to expiry without a stored refresh token is not renewed", func(t *testing.T) {
		loggedOut := testutils.CreateTestUser(t, env.DB, "nora@blog.test", password, models.RoleAuthor)
		require.NoError(t, env.DB.Model(loggedOut).Update("refresh_token", nil).Error)

		token := testutils.GetAuthToken(t, env.Issuer, loggedOut, -12*time.Minute)
		resp, err := testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, token)
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		assert.Nil(t, result.TokenRefresh)
	})

	t.Run("Success - Token close to expiry of a deactivated user is not renewed", func(t *testing.T) {
		inactive := testutils.CreateTestUser(t, env.DB, "ivo@blog.test", password, models.RoleAuthor)
		testutils.StoreRefreshToken(t, env.DB, env.Issuer, inactive)
		require.NoError(t, env.DB.Model(inactive).Update("active", false).Error)

		token := testutils.GetAuthToken(t, env.Issuer, inactive, -12*time.Minute)
		resp, err := testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, token)
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		assert.Nil(t, result.TokenRefresh)
	})

	t.Run("Success - Expired token recovered with refresh header", func(t *testing.T) {
		token := testutils.GetAuthToken(t, env.Issuer, user, -20*time.Minute)
		resp, err := testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, token,
			testutils.Header{Key: auth.RefreshTokenHeader, Value: refresh})
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		require.NotNil(t, result.TokenRefresh)
		assert.NotEmpty(t, result.TokenRefresh.NewAccessToken)
	})

	t.Run("Success - Expired token recovered with refresh token in body", func(t *testing.T) {
		token := testutils.GetAuthToken(t, env.Issuer, user, -20*time.Minute)
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/check-auth",
			map[string]interface{}{"refreshToken": refresh}, token)
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		assert.NotNil(t, result.TokenRefresh)
	})

	t.Run("Error - Expired token without refresh token", func(t *testing.T) {
		token := testutils.GetAuthToken(t, env.Issuer, user, -20*time.Minute)
		resp, err := testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, token)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusUnauthorized, "TOKEN_EXPIRED")
	})

	t.Run("Error - Expired token with a refresh token that is not the stored one", func(t *testing.T) {
		other, err := env.Issuer.IssueRefreshToken(user)
		require.NoError(t, err)

		token := testutils.GetAuthToken(t, env.Issuer, user, -20*time.Minute)
		resp, err := testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, token,
			testutils.Header{Key: auth.RefreshTokenHeader, Value: other})
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusUnauthorized, "SESSION_EXPIRED")
	})

	t.Run("Error - Missing token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusUnauthorized, "UNAUTHORIZED")
	})

	t.Run("Error - Token signed with the refresh secret", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, refresh)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusUnauthorized, "UNAUTHORIZED")
	})
}

func TestLogoutHandler(t *testing.T) {
	env := testutils.SetupTestApp(t)
	user := testutils.CreateTestUser(t, env.DB, "ana@blog.test", password, models.RoleAuthor)

	t.Run("Success - Logged out token is revoked and refresh token cleared", func(t *testing.T) {
		access, refresh := login(t, env, user.Email, "")

		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/logout", nil, access)
		assert.NoError(t, err)
		testutils.AssertSuccess(t, resp, http.StatusOK)

		var count int64
		env.DB.Model(&models.RevokedToken{}).Where("token = ?", access).Count(&count)
		assert.Equal(t, int64(1), count)

		resp, err = testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, access)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusUnauthorized, "REVOKED")

		resp, err = testutils.MakeRequest(env.App, "POST", "/api/auth/refresh-token",
			map[string]interface{}{"refreshToken": refresh}, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusForbidden, "INVALID_REFRESH_TOKEN")
	})

	t.Run("Success - Logout after recovery revokes the renewed token", func(t *testing.T) {
		refresh := testutils.StoreRefreshToken(t, env.DB, env.Issuer, user)
		expired := testutils.GetAuthToken(t, env.Issuer, user, -20*time.Minute)

		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/logout", nil, expired,
			testutils.Header{Key: auth.RefreshTokenHeader, Value: refresh})
		assert.NoError(t, err)
		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		require.NotNil(t, result.TokenRefresh)

		resp, err = testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, result.TokenRefresh.NewAccessToken)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusUnauthorized, "REVOKED")
	})

	t.Run("Success - Logout near expiry leaves no usable token", func(t *testing.T) {
		testutils.StoreRefreshToken(t, env.DB, env.Issuer, user)
		access := testutils.GetAuthToken(t, env.Issuer, user, -12*time.Minute)

		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/logout", nil, access)
		assert.NoError(t, err)
		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		require.NotNil(t, result.TokenRefresh)

		for _, token := range []string{access, result.TokenRefresh.NewAccessToken} {
			resp, err = testutils.MakeRequest(env.App, "GET", "/api/auth/check-auth", nil, token)
			assert.NoError(t, err)
			testutils.AssertError(t, resp, http.StatusUnauthorized, "REVOKED")
		}

		var stored models.User
		require.NoError(t, env.DB.First(&stored, user.ID).Error)
		assert.Nil(t, stored.RefreshToken)
	})
}

func TestRefreshTokenHandler(t *testing.T) {
	env := testutils.SetupTestApp(t)
	user := testutils.CreateTestUser(t, env.DB, "ana@blog.test", password, models.RoleAuthor)

	t.Run("Success - Refresh is independent of access token revocation", func(t *testing.T) {
		access, refresh := login(t, env, user.Email, "")
		claims, err := env.Issuer.ParseAccessToken(access)
		require.NoError(t, err)
		require.NoError(t, env.Revocations.Revoke(context.Background(), access, claims.ExpiresAt.Time, user.ID))

		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/refresh-token",
			map[string]interface{}{"refreshToken": refresh}, "")
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		data := result.DataMap()
		assert.Equal(t, float64(auth.AccessTokenTTL.Seconds()), data["expiresIn"])
		_, err = env.Issuer.ParseAccessToken(data["accessToken"].(string))
		assert.NoError(t, err)
	})

	t.Run("Error - Missing refresh token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/refresh-token", map[string]interface{}{}, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("Error - Unknown field", func(t *testing.T) {
		_, refresh := login(t, env, user.Email, "")
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/refresh-token", map[string]interface{}{
			"refreshToken": refresh,
			"rotate":       true,
		}, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("Error - Garbage refresh token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/api/auth/refresh-token",
			map[string]interface{}{"refreshToken": "not-a-jwt"}, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusForbidden, "INVALID_REFRESH_TOKEN")
	})
}

func TestRequireRole(t *testing.T) {
	env := testutils.SetupTestApp(t)
	author := testutils.CreateTestUser(t, env.DB, "author@blog.test", password, models.RoleAuthor)
	admin := testutils.CreateTestUser(t, env.DB, "admin@blog.test", password, models.RoleAdmin)

	t.Run("Error - Author is forbidden", func(t *testing.T) {
		token := testutils.GetAuthToken(t, env.Issuer, author, 0)
		resp, err := testutils.MakeRequest(env.App, "GET", "/api/users", nil, token)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("Success - Admin passes through", func(t *testing.T) {
		token := testutils.GetAuthToken(t, env.Issuer, admin, 0)
		resp, err := testutils.MakeRequest(env.App, "GET", "/api/users", nil, token)
		assert.NoError(t, err)
		testutils.AssertSuccess(t, resp, http.StatusOK)
	})
}
