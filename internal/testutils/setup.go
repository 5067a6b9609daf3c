package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/Kyz7/blog/internal/auth"
	"github.com/Kyz7/blog/internal/config"
	"github.com/Kyz7/blog/internal/database"
	"github.com/Kyz7/blog/internal/models"
	"github.com/Kyz7/blog/internal/revocation"
	"github.com/Kyz7/blog/internal/server"
	"github.com/Kyz7/blog/internal/storage"
	"github.com/Kyz7/blog/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	AccessSecret    = "test-access-secret-0123456789abcdef"
	RefreshSecret   = "test-refresh-secret-0123456789abcdef"
	DefaultPassword = "Default@Pass123"
	ProtectedEmail  = "owner@blog.test"
)

type TestEnv struct {
	App         *fiber.App
	DB          *gorm.DB
	Config      *config.Config
	Issuer      *auth.Issuer
	Revocations *revocation.Store
	Storage     *storage.Local
}

func TestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err, "Failed to create test database")
	require.NoError(t, database.Migrate(db), "Failed to migrate test database")

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestConfig(t *testing.T) *config.Config {
	return &config.Config{
		AppEnv:               "test",
		LogLevel:             "info",
		DBDriver:             "sqlite",
		SQLitePath:           ":memory:",
		AccessSecret:         AccessSecret,
		RefreshSecret:        RefreshSecret,
		RevokedSweepInterval: time.Minute,
		ProtectedEmails:      []string{ProtectedEmail},
		DefaultUserPassword:  DefaultPassword,
		AdminName:            "Administrator",
		UploadDir:            t.TempDir(),
		CORSOrigins:          "http://localhost:3000",
	}
}

func SetupTestApp(t *testing.T) *TestEnv {
	cfg := TestConfig(t)
	db := TestDB(t)

	issuer, err := auth.NewIssuer(cfg.AccessSecret, cfg.RefreshSecret)
	require.NoError(t, err)

	store, err := storage.NewLocal(cfg.UploadDir, "http://localhost:8080")
	require.NoError(t, err, "Failed to initialize storage")

	revocations := revocation.NewStore(db, nil)

	app := server.New(server.Deps{
		Config:      cfg,
		DB:          db,
		Issuer:      issuer,
		Revocations: revocations,
		Storage:     store,
	})

	return &TestEnv{
		App:         app,
		DB:          db,
		Config:      cfg,
		Issuer:      issuer,
		Revocations: revocations,
		Storage:     store,
	}
}

func CreateTestUser(t *testing.T, db *gorm.DB, email, password string, role models.Role) *models.User {
	hashedPassword, err := utils.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Name:           "Test User",
		SearchableName: "test user",
		Email:          email,
		Password:       hashedPassword,
		Role:           role,
		Active:         true,
	}
	require.NoError(t, db.Create(user).Error, "Failed to create test user")
	return user
}

// GetAuthToken mints an access token for u. A negative age issues a token that
// was minted in the past, e.g. -20*time.Minute yields an already expired one.
func GetAuthToken(t *testing.T, issuer *auth.Issuer, u *models.User, age time.Duration) string {
	if age != 0 {
		issuer = issuer.WithClock(func() time.Time { return time.Now().Add(age) })
	}
	token, err := issuer.IssueAccessToken(u)
	require.NoError(t, err, "Failed to generate test token")
	return token
}

// StoreRefreshToken issues a refresh token for u and records it as the active one.
func StoreRefreshToken(t *testing.T, db *gorm.DB, issuer *auth.Issuer, u *models.User) string {
	token, err := issuer.IssueRefreshToken(u)
	require.NoError(t, err)
	require.NoError(t, db.Model(u).Update("refresh_token", token).Error)
	return token
}

// CreateTestPost inserts a post directly, bypassing the HTTP layer.
func CreateTestPost(t *testing.T, db *gorm.DB, author *models.User, title string, published bool) *models.Post {
	var category models.Category
	require.NoError(t, db.Where("slug = ?", models.DefaultCategorySlug).First(&category).Error)

	post := &models.Post{
		Title:           title,
		Slug:            utils.Slugify(title),
		SearchableTitle: utils.RemoveAccents(title),
		Content:         "<p>" + title + " content</p>",
		AuthorID:        author.ID,
		CategoryID:      category.ID,
	}
	require.NoError(t, db.Create(post).Error)
	// zero values are skipped on create
	require.NoError(t, db.Model(post).Update("published", published).Error)
	return post
}

type Header struct {
	Key, Value string
}

func MakeRequest(app *fiber.App, method, url string, body interface{}, token string, headers ...Header) (*httptest.ResponseRecorder, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, h := range headers {
		req.Header.Set(h.Key, h.Value)
	}

	return do(app, req)
}

type File struct {
	Field       string
	Name        string
	ContentType string
	Content     []byte
}

func MakeMultipartRequest(app *fiber.App, method, url string, fields map[string]string, files []File, token string) (*httptest.ResponseRecorder, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, val := range fields {
		if err := writer.WriteField(key, val); err != nil {
			return nil, err
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.Field, f.Name))
		h.Set("Content-Type", f.ContentType)
		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, err
		}
	}

	contentType := writer.FormDataContentType()
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return do(app, req)
}

func do(app *fiber.App, req *http.Request) (*httptest.ResponseRecorder, error) {
	rec := httptest.NewRecorder()
	resp, err := app.Test(req, -1)
	if err != nil {
		return rec, err
	}
	defer resp.Body.Close()

	rec.Code = resp.StatusCode
	for k, v := range resp.Header {
		for _, val := range v {
			rec.Header().Add(k, val)
		}
	}
	if _, err := io.Copy(rec.Body, resp.Body); err != nil {
		return rec, err
	}
	return rec, nil
}

func ParseResponse(t *testing.T, resp *httptest.ResponseRecorder) StandardResponse {
	t.Helper()
	var result StandardResponse
	if resp.Body.Len() == 0 {
		t.Log("Warning: Response body is empty")
		return result
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Logf("Response body: %s", resp.Body.String())
		assert.NoError(t, err, "Failed to parse response")
	}
	return result
}

// DataMap returns the response data as a JSON object.
func (r StandardResponse) DataMap() map[string]interface{} {
	m, _ := r.Data.(map[string]interface{})
	return m
}

// DataList returns the response data as a JSON array.
func (r StandardResponse) DataList() []interface{} {
	l, _ := r.Data.([]interface{})
	return l
}

type StandardResponse struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
	Data         interface{}   `json:"data"`
	Error        *ErrorDetail  `json:"error"`
	Meta         *Meta         `json:"meta"`
	TokenRefresh *TokenRefresh `json:"tokenRefresh"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

type TokenRefresh struct {
	NewAccessToken string `json:"newAccessToken"`
	ExpiresIn      int    `json:"expiresIn"`
}

func AssertSuccess(t *testing.T, resp *httptest.ResponseRecorder, expectedStatus int) StandardResponse {
	t.Helper()
	result := ParseResponse(t, resp)
	assert.Equal(t, expectedStatus, resp.Code, resp.Body.String())
	assert.True(t, result.Success, "Expected success response")
	assert.Nil(t, result.Error, "Expected no error")
	return result
}

func AssertError(t *testing.T, resp *httptest.ResponseRecorder, expectedStatus int, expectedCode string) StandardResponse {
	t.Helper()
	result := ParseResponse(t, resp)
	assert.Equal(t, expectedStatus, resp.Code, resp.Body.String())
	assert.False(t, result.Success, "Expected error response")
	if assert.NotNil(t, result.Error, "Expected error object") {
		assert.Equal(t, expectedCode, result.Error.Code, "Error code mismatch")
	}
	return result
}
