package post_test

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Kyz7/blog/internal/models"
	"github.com/Kyz7/blog/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "Secret@Pass123"

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake image body")

type fixture struct {
	env         *testutils.TestEnv
	author      *models.User
	other       *models.User
	admin       *models.User
	authorToken string
	otherToken  string
	adminToken  string
	category    models.Category
	tags        []models.Tag
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := testutils.SetupTestApp(t)
	f := &fixture{
		env:    env,
		author: testutils.CreateTestUser(t, env.DB, "author@blog.test", password, models.RoleAuthor),
		other:  testutils.CreateTestUser(t, env.DB, "other@blog.test", password, models.RoleAuthor),
		admin:  testutils.CreateTestUser(t, env.DB, "admin@blog.test", password, models.RoleAdmin),
	}
	f.authorToken = testutils.GetAuthToken(t, env.Issuer, f.author, 0)
	f.otherToken = testutils.GetAuthToken(t, env.Issuer, f.other, 0)
	f.adminToken = testutils.GetAuthToken(t, env.Issuer, f.admin, 0)

	f.category = models.Category{Name: "Travel", Slug: "travel"}
	require.NoError(t, env.DB.Create(&f.category).Error)
	f.tags = []models.Tag{{Name: "Go", Slug: "go"}, {Name: "Web", Slug: "web"}}
	require.NoError(t, env.DB.Create(&f.tags).Error)
	return f
}

func (f *fixture) localPath(url string) string {
	rel := strings.TrimPrefix(url, "http://localhost:8080/uploads/")
	return filepath.Join(f.env.Config.UploadDir, filepath.FromSlash(rel))
}

func TestCreatePostHandler(t *testing.T) {
	f := setup(t)

	t.Run("Success - Create from JSON", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "POST", "/api/posts/admin", map[string]interface{}{
			"title":      "Hello World",
			"content":    `<p>Hi</p><script>alert("x")</script>`,
			"categoryId": f.category.ID,
			"tags":       []uint{f.tags[0].ID, f.tags[1].ID},
			"published":  true,
			"meta":       map[string]interface{}{"readingTime": 3},
		}, f.authorToken)
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusCreated)
		data := result.DataMap()
		assert.Equal(t, "hello-world", data["slug"])
		assert.Equal(t, "<p>Hi</p>", data["content"])
		assert.Equal(t, float64(f.author.ID), data["authorId"])
		assert.Equal(t, true, data["published"])
		assert.Len(t, data["tags"], 2)
		assert.Equal(t, "Travel", data["category"].(map[string]interface{})["name"])
	})

	t.Run("Success - Same title gets a suffixed slug", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "POST", "/api/posts/admin", map[string]interface{}{
			"title":      "Hello World",
			"content":    "again",
			"categoryId": f.category.ID,
		}, f.authorToken)
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusCreated)
		assert.Equal(t, "hello-world-1", result.DataMap()["slug"])
		assert.Equal(t, false, result.DataMap()["published"])
	})

	t.Run("Success - Create from multipart with featured image", func(t *testing.T) {
		resp, err := testutils.MakeMultipartRequest(f.env.App, "POST", "/api/posts/admin", map[string]string{
			"title":      "With Image",
			"content":    "<p>picture</p>",
			"categoryId": fmt.Sprint(f.category.ID),
			"tags":       fmt.Sprintf("%d", f.tags[0].ID),
		}, []testutils.File{{Field: "featuredImage", Name: "cover.PNG", ContentType: "image/png", Content: pngBytes}}, f.authorToken)
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusCreated)
		url, ok := result.DataMap()["featuredImage"].(string)
		require.True(t, ok)
		assert.True(t, strings.HasSuffix(url, ".png"))

		stored, err := os.ReadFile(f.localPath(url))
		require.NoError(t, err)
		assert.Equal(t, pngBytes, stored)
	})

	t.Run("Error - Featured image must be an image", func(t *testing.T) {
		resp, err := testutils.MakeMultipartRequest(f.env.App, "POST", "/api/posts/admin", map[string]string{
			"title":      "Bad Upload",
			"content":    "text",
			"categoryId": fmt.Sprint(f.category.ID),
		}, []testutils.File{{Field: "featuredImage", Name: "notes.txt", ContentType: "text/plain", Content: []byte("hi")}}, f.authorToken)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("Error - Missing required fields", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "POST", "/api/posts/admin", map[string]interface{}{
			"title": "Only a title",
		}, f.authorToken)
		assert.NoError(t, err)

		result := testutils.AssertError(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")
		details := result.Error.Details.(map[string]interface{})
		assert.Contains(t, details, "content")
		assert.Contains(t, details, "categoryId")
	})

	t.Run("Error - Unknown tag", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "POST", "/api/posts/admin", map[string]interface{}{
			"title":      "Tagged",
			"content":    "text",
			"categoryId": f.category.ID,
			"tags":       []uint{f.tags[0].ID, 9999},
		}, f.authorToken)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("Error - Unknown category", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "POST", "/api/posts/admin", map[string]interface{}{
			"title":      "Lost",
			"content":    "text",
			"categoryId": 9999,
		}, f.authorToken)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("Error - Unknown field", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "POST", "/api/posts/admin", map[string]interface{}{
			"title":      "Strict",
			"content":    "text",
			"categoryId": f.category.ID,
			"authorId":   f.other.ID,
		}, f.authorToken)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("Error - Anonymous caller", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "POST", "/api/posts/admin", map[string]interface{}{
			"title": "Nope",
		}, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusUnauthorized, "UNAUTHORIZED")
	})
}

func TestReadPostHandlers(t *testing.T) {
	f := setup(t)
	published := testutils.CreateTestPost(t, f.env.DB, f.author, "Éléphant Voyage", true)
	draft := testutils.CreateTestPost(t, f.env.DB, f.author, "Secret Draft", false)
	require.NoError(t, f.env.DB.Model(published).Association("Tags").Append(&f.tags[0]))
	require.NoError(t, f.env.DB.Create(&[]models.Comment{
		{PostID: published.ID, Content: "Nice", VisitorName: "Vis", VisitorEmail: "v@blog.test", IsApproved: true},
		{PostID: published.ID, Content: "Spam", VisitorName: "Bot", VisitorEmail: "b@blog.test"},
	}).Error)

	t.Run("Success - Anonymous list only shows published posts", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "GET", "/api/posts", nil, "")
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		require.Len(t, result.DataList(), 1)
		item := result.DataList()[0].(map[string]interface{})
		assert.Equal(t, float64(published.ID), item["id"])
		assert.Equal(t, float64(2), item["commentsCount"])
		assert.Equal(t, "Test User", item["author"].(map[string]interface{})["name"])
	})

	t.Run("Success - Authenticated list includes drafts", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "GET", "/api/posts", nil, f.otherToken)
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		assert.Len(t, result.DataList(), 2)
		assert.Equal(t, int64(2), result.Meta.Total)
	})

	t.Run("Success - Filter by tag", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "GET", "/api/posts?tag=go", nil, f.otherToken)
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		assert.Len(t, result.DataList(), 1)
	})

	t.Run("Success - Search ignores accents and case", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "GET", "/api/posts/search?q=ELEPHANT", nil, "")
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		assert.Len(t, result.DataList(), 1)
	})

	t.Run("Success - Posts by category and tag", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "GET", "/api/posts/category/"+models.DefaultCategorySlug, nil, "")
		assert.NoError(t, err)
		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		assert.Len(t, result.DataList(), 1, "drafts are excluded")

		resp, err = testutils.MakeRequest(f.env.App, "GET", "/api/posts/tag/go", nil, "")
		assert.NoError(t, err)
		result = testutils.AssertSuccess(t, resp, http.StatusOK)
		assert.Len(t, result.DataList(), 1)
	})

	t.Run("Error - Unknown category slug", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "GET", "/api/posts/category/nowhere", nil, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("Success - Anonymous sees only approved comments", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "GET", fmt.Sprintf("/api/posts/%d", published.ID), nil, "")
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		assert.Len(t, result.DataMap()["comments"], 1)
	})

	t.Run("Error - Anonymous caller cannot read a draft", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "GET", fmt.Sprintf("/api/posts/%d", draft.ID), nil, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("Success - Authenticated caller reads a draft", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "GET", fmt.Sprintf("/api/posts/%d", draft.ID), nil, f.otherToken)
		assert.NoError(t, err)
		testutils.AssertSuccess(t, resp, http.StatusOK)
	})

	t.Run("Error - Post not found", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "GET", "/api/posts/9999", nil, "")
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusNotFound, "NOT_FOUND")
	})
}

func TestUpdatePostHandler(t *testing.T) {
	f := setup(t)
	post := testutils.CreateTestPost(t, f.env.DB, f.author, "Original Title", false)
	require.NoError(t, f.env.DB.Model(post).Association("Tags").Append(&f.tags[0]))
	url := fmt.Sprintf("/api/posts/admin/%d", post.ID)

	t.Run("Error - Another author cannot edit", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "PUT", url, map[string]interface{}{
			"title": "Taken Over",
		}, f.otherToken)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("Success - Owner renames and retags", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "PUT", url, map[string]interface{}{
			"title":      "Fresh Title",
			"categoryId": f.category.ID,
			"tags":       []uint{f.tags[1].ID},
		}, f.authorToken)
		assert.NoError(t, err)

		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		data := result.DataMap()
		assert.Equal(t, "fresh-title", data["slug"])
		assert.Equal(t, float64(f.category.ID), data["categoryId"])
		tags := data["tags"].([]interface{})
		require.Len(t, tags, 1)
		assert.Equal(t, "web", tags[0].(map[string]interface{})["slug"])
	})

	t.Run("Success - Admin publishes and the old image is replaced", func(t *testing.T) {
		resp, err := testutils.MakeMultipartRequest(f.env.App, "PUT", url, map[string]string{
			"published": "true",
		}, []testutils.File{{Field: "featuredImage", Name: "a.png", ContentType: "image/png", Content: pngBytes}}, f.adminToken)
		assert.NoError(t, err)
		first := testutils.AssertSuccess(t, resp, http.StatusOK).DataMap()["featuredImage"].(string)
		assert.FileExists(t, f.localPath(first))

		resp, err = testutils.MakeMultipartRequest(f.env.App, "PUT", url, map[string]string{},
			[]testutils.File{{Field: "featuredImage", Name: "b.png", ContentType: "image/png", Content: pngBytes}}, f.adminToken)
		assert.NoError(t, err)
		result := testutils.AssertSuccess(t, resp, http.StatusOK)
		second := result.DataMap()["featuredImage"].(string)

		assert.Equal(t, true, result.DataMap()["published"])
		assert.NotEqual(t, first, second)
		assert.NoFileExists(t, f.localPath(first))
		assert.FileExists(t, f.localPath(second))
	})

	t.Run("Error - Unknown form field", func(t *testing.T) {
		resp, err := testutils.MakeMultipartRequest(f.env.App, "PUT", url, map[string]string{
			"authorId": "1",
		}, nil, f.authorToken)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("Error - Post not found", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "PUT", "/api/posts/admin/9999", map[string]interface{}{
			"title": "Ghost",
		}, f.adminToken)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusNotFound, "NOT_FOUND")
	})
}

func TestDeletePostHandler(t *testing.T) {
	f := setup(t)

	resp, err := testutils.MakeMultipartRequest(f.env.App, "POST", "/api/posts/admin", map[string]string{
		"title":      "Short Lived",
		"content":    "bye",
		"categoryId": fmt.Sprint(f.category.ID),
		"tags":       fmt.Sprintf("%d,%d", f.tags[0].ID, f.tags[1].ID),
		"published":  "true",
	}, []testutils.File{{Field: "featuredImage", Name: "c.png", ContentType: "image/png", Content: pngBytes}}, f.authorToken)
	require.NoError(t, err)
	created := testutils.AssertSuccess(t, resp, http.StatusCreated).DataMap()
	id := uint(created["id"].(float64))
	image := f.localPath(created["featuredImage"].(string))
	require.NoError(t, f.env.DB.Create(&models.Comment{PostID: id, Content: "c", VisitorName: "v", VisitorEmail: "v@blog.test"}).Error)

	t.Run("Error - Another author cannot delete", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "DELETE", fmt.Sprintf("/api/posts/admin/%d", id), nil, f.otherToken)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("Success - Owner deletes post, comments, tag links and image", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "DELETE", fmt.Sprintf("/api/posts/admin/%d", id), nil, f.authorToken)
		assert.NoError(t, err)
		testutils.AssertSuccess(t, resp, http.StatusOK)

		var count int64
		f.env.DB.Model(&models.Post{}).Where("id = ?", id).Count(&count)
		assert.Zero(t, count)
		f.env.DB.Model(&models.Comment{}).Where("post_id = ?", id).Count(&count)
		assert.Zero(t, count)
		f.env.DB.Table("post_tags").Where("post_id = ?", id).Count(&count)
		assert.Zero(t, count)
		f.env.DB.Model(&models.Tag{}).Count(&count)
		assert.Equal(t, int64(2), count, "tags themselves survive")
		assert.NoFileExists(t, image)
	})

	t.Run("Error - Already deleted", func(t *testing.T) {
		resp, err := testutils.MakeRequest(f.env.App, "DELETE", fmt.Sprintf("/api/posts/admin/%d", id), nil, f.adminToken)
		assert.NoError(t, err)
		testutils.AssertError(t, resp, http.StatusNotFound, "NOT_FOUND")
	})
}
