package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/sonht113/recipebook/internal/handlers/middleware"
	"github.com/sonht113/recipebook/internal/logger"
	"github.com/sonht113/recipebook/internal/repository/postgres"
	"github.com/sonht113/recipebook/internal/service/auth"
	"github.com/sonht113/recipebook/internal/service/auth/tokenmanager"
	"github.com/sonht113/recipebook/internal/service/recipe"
	"github.com/sonht113/recipebook/internal/testutil"
)

// Run http server with the full api router over production services
// Rollback db transaction when test stops
func withServer(pg testutil.PostgresContainer, t *testing.T, fn func(url string, s *auth.AuthService)) {
	t.Helper()

	withTx := func(dbpool *pgxpool.Pool, fn func(url string, s *auth.AuthService)) {
		testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			l := logger.NewNoOpLogger()

			tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
			require.NoError(t, err, "token manager should be created without errors")

			authService, err := auth.NewService(auth.Config{}, tokenManager, storage)
			require.NoError(t, err, "auth service starting error")

			recipeService, err := recipe.NewService(storage)
			require.NoError(t, err, "recipe service starting error")

			router := NewRouter(
				NewAuth(authService, l),
				NewRecipe(recipeService, l),
				middleware.AuthMiddleware(authService, l),
				middleware.OptionalAuthMiddleware(authService),
			)

			srv := httptest.NewServer(router)
			defer srv.Close()

			fn(srv.URL, authService)
		})
	}

	withTx(pg.Pool, fn)
}

// Matches tokenPairResponse the server renders on register, login and refresh
type tokenPairBody struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func doJSON(t *testing.T, method string, url string, body string, headers map[string]string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	return resp, string(respBody)
}

func Test_AuthHandler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	registerBody := `{"email": "nk@example.com", "name": "nk", "password": "StrongEnoughPassword"}`

	t.Run("register ok", func(t *testing.T) {
		withServer(pg, t, func(url string, _ *auth.AuthService) {
			resp, body := doJSON(t, "POST", url+"/api/auth/register", registerBody, nil)

			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			var pair tokenPairBody
			require.NoError(t, json.Unmarshal([]byte(body), &pair))
			require.Equal(t, "nk@example.com", pair.User.Email)
			require.Equal(t, "nk", pair.User.Name)
			require.NotEmpty(t, pair.User.ID)
			require.NotEmpty(t, pair.AccessToken, "access token should be issued on register")
			require.NotEmpty(t, pair.RefreshToken, "refresh token should be issued on register")
		})
	})

	t.Run("register existed user fails", func(t *testing.T) {
		withServer(pg, t, func(url string, _ *auth.AuthService) {
			resp, body := doJSON(t, "POST", url+"/api/auth/register", registerBody, nil)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			resp, body = doJSON(t, "POST", url+"/api/auth/register", registerBody, nil)

			require.Equalf(t, http.StatusConflict, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "User with this email already exists"
				}`, body)
		})
	})

	t.Run("register invalid payload fails", func(t *testing.T) {
		withServer(pg, t, func(url string, _ *auth.AuthService) {
			data := `{"email": "not-an-email", "name": "nk", "password": "short"}`

			resp, body := doJSON(t, "POST", url+"/api/auth/register", data, nil)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, "validation_failed")
		})
	})

	t.Run("login ok", func(t *testing.T) {
		withServer(pg, t, func(url string, _ *auth.AuthService) {
			resp, body := doJSON(t, "POST", url+"/api/auth/register", registerBody, nil)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			data := `{"email": "nk@example.com", "password": "StrongEnoughPassword"}`
			resp, body = doJSON(t, "POST", url+"/api/auth/login", data, nil)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var pair tokenPairBody
			require.NoError(t, json.Unmarshal([]byte(body), &pair))
			require.NotEmpty(t, pair.AccessToken)
			require.NotEmpty(t, pair.RefreshToken)
		})
	})

	t.Run("login failed", func(t *testing.T) {
		// Unknown email and wrong password answer exactly the same
		for name, data := range map[string]string{
			"unknown email":  `{"email": "other@example.com", "password": "StrongEnoughPassword"}`,
			"wrong password": `{"email": "nk@example.com", "password": "WrongPassword"}`,
		} {
			t.Run(name, func(t *testing.T) {
				withServer(pg, t, func(url string, _ *auth.AuthService) {
					resp, body := doJSON(t, "POST", url+"/api/auth/register", registerBody, nil)
					require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

					resp, body = doJSON(t, "POST", url+"/api/auth/login", data, nil)

					require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
					require.JSONEq(t, `
						{
							"error": "service_error",
							"message": "Invalid email or password"
						}`, body)
				})
			})
		}
	})

	t.Run("refresh token ok", func(t *testing.T) {
		withServer(pg, t, func(url string, _ *auth.AuthService) {
			resp, body := doJSON(t, "POST", url+"/api/auth/register", registerBody, nil)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			var first tokenPairBody
			require.NoError(t, json.Unmarshal([]byte(body), &first))

			data := `{"refreshToken": "` + first.RefreshToken + `"}`
			resp, body = doJSON(t, "POST", url+"/api/auth/refresh", data, nil)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var second tokenPairBody
			require.NoError(t, json.Unmarshal([]byte(body), &second))
			require.NotEqual(t, first.RefreshToken, second.RefreshToken, "refresh token should be rotated")
			require.NotEmpty(t, second.AccessToken)
		})
	})

	t.Run("refresh twice fails", func(t *testing.T) {
		withServer(pg, t, func(url string, _ *auth.AuthService) {
			resp, body := doJSON(t, "POST", url+"/api/auth/register", registerBody, nil)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			var pair tokenPairBody
			require.NoError(t, json.Unmarshal([]byte(body), &pair))

			data := `{"refreshToken": "` + pair.RefreshToken + `"}`
			resp, body = doJSON(t, "POST", url+"/api/auth/refresh", data, nil)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			resp, body = doJSON(t, "POST", url+"/api/auth/refresh", data, nil)

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Invalid or expired refresh token"
				}`, body)
		})
	})

	t.Run("me", func(t *testing.T) {
		withServer(pg, t, func(url string, _ *auth.AuthService) {
			resp, body := doJSON(t, "POST", url+"/api/auth/register", registerBody, nil)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			var pair tokenPairBody
			require.NoError(t, json.Unmarshal([]byte(body), &pair))

			resp, body = doJSON(t, "GET", url+"/api/auth/me", "", map[string]string{
				"Authorization": "Bearer " + pair.AccessToken,
			})

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"nk@example.com"`)
			require.NotContains(t, body, "password", "no password data in the profile response")
		})
	})

	t.Run("me without token fails", func(t *testing.T) {
		withServer(pg, t, func(url string, _ *auth.AuthService) {
			resp, body := doJSON(t, "GET", url+"/api/auth/me", "", nil)

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Unauthorized: no token provided"
				}`, body)
		})
	})

	t.Run("logout revokes refresh token", func(t *testing.T) {
		withServer(pg, t, func(url string, _ *auth.AuthService) {
			resp, body := doJSON(t, "POST", url+"/api/auth/register", registerBody, nil)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			var pair tokenPairBody
			require.NoError(t, json.Unmarshal([]byte(body), &pair))

			data := `{"refreshToken": "` + pair.RefreshToken + `"}`
			resp, body = doJSON(t, "POST", url+"/api/auth/logout", data, map[string]string{
				"Authorization": "Bearer " + pair.AccessToken,
			})
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			resp, body = doJSON(t, "POST", url+"/api/auth/refresh", data, nil)
			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "revoked token should not refresh. Body: %s", body)
		})
	})

	t.Run("change password", func(t *testing.T) {
		withServer(pg, t, func(url string, _ *auth.AuthService) {
			resp, body := doJSON(t, "POST", url+"/api/auth/register", registerBody, nil)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			var pair tokenPairBody
			require.NoError(t, json.Unmarshal([]byte(body), &pair))
			authHeader := map[string]string{"Authorization": "Bearer " + pair.AccessToken}

			t.Run("wrong current password fails", func(t *testing.T) {
				data := `{"currentPassword": "WrongPassword", "newPassword": "EvenStrongerPassword"}`
				resp, body := doJSON(t, "POST", url+"/api/auth/change-password", data, authHeader)

				require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
				require.JSONEq(t, `
					{
						"error": "service_error",
						"message": "Current password is incorrect"
					}`, body)
			})

			t.Run("ok and sessions revoked", func(t *testing.T) {
				data := `{"currentPassword": "StrongEnoughPassword", "newPassword": "EvenStrongerPassword"}`
				resp, body := doJSON(t, "POST", url+"/api/auth/change-password", data, authHeader)
				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

				// Old refresh token is revoked
				refreshData := `{"refreshToken": "` + pair.RefreshToken + `"}`
				resp, body = doJSON(t, "POST", url+"/api/auth/refresh", refreshData, nil)
				require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)

				// New password works, old one doesn't
				loginData := `{"email": "nk@example.com", "password": "EvenStrongerPassword"}`
				resp, body = doJSON(t, "POST", url+"/api/auth/login", loginData, nil)
				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

				loginData = `{"email": "nk@example.com", "password": "StrongEnoughPassword"}`
				resp, body = doJSON(t, "POST", url+"/api/auth/login", loginData, nil)
				require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
			})
		})
	})
}
