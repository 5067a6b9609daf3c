package server

import (
	"time"

	"github.com/Kyz7/blog/internal/auth"
	"github.com/Kyz7/blog/internal/category"
	"github.com/Kyz7/blog/internal/comment"
	"github.com/Kyz7/blog/internal/middleware"
	"github.com/Kyz7/blog/internal/models"
	"github.com/Kyz7/blog/internal/post"
	"github.com/Kyz7/blog/internal/stats"
	"github.com/Kyz7/blog/internal/tag"
	"github.com/Kyz7/blog/internal/user"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func SetupRoutes(app *fiber.App, deps Deps) {
	authService := auth.NewService(deps.DB, deps.Issuer, deps.Revocations)
	sessions := auth.NewMiddleware(authService, deps.Revocations)
	adminOnly := auth.RequireRole(models.RoleAdmin)

	postService := post.NewService(deps.DB, deps.Storage)
	userService := user.NewService(deps.DB, user.NewProtectedAccounts(deps.Config.ProtectedEmails), deps.Config.DefaultUserPassword)

	authHandler := auth.NewHandler(authService)
	postHandler := post.NewHandler(postService)
	commentHandler := comment.NewHandler(comment.NewService(deps.DB))
	categoryHandler := category.NewHandler(category.NewService(deps.DB))
	tagHandler := tag.NewHandler(tag.NewService(deps.DB))
	statsHandler := stats.NewHandler(stats.NewService(deps.DB))
	userHandler := user.NewHandler(userService)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Blog API is running",
			"storage": deps.Storage.Mode(),
		})
	})

	api := app.Group("/api")

	// ==========================================
	// AUTH
	// ==========================================
	authGroup := api.Group("/auth")
	authGroup.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 15 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}), authHandler.Login)
	authGroup.Post("/logout", sessions.Authenticate(), authHandler.Logout)
	authGroup.Post("/refresh-token", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 5 * time.Minute,
	}), authHandler.RefreshToken)
	authGroup.Get("/check-auth", sessions.Authenticate(), authHandler.CheckAuth)
	authGroup.Post("/check-auth", sessions.Authenticate(), authHandler.CheckAuth)

	// ==========================================
	// POSTS (static paths before /:id)
	// ==========================================
	posts := api.Group("/posts")
	posts.Get("/", sessions.OptionalAuth(), postHandler.List)
	posts.Get("/search", sessions.OptionalAuth(), postHandler.Search)
	posts.Get("/categories/all", categoryHandler.List)
	posts.Get("/tags/all", tagHandler.List)
	posts.Get("/category/:slug", postHandler.ByCategory)
	posts.Get("/tag/:slug", postHandler.ByTag)

	admin := posts.Group("/admin", sessions.Authenticate())
	admin.Get("/dashboard/stats", statsHandler.Dashboard)
	admin.Post("/", postHandler.Create)
	admin.Post("/categories", categoryHandler.Create)
	admin.Delete("/categories/:id", adminOnly, categoryHandler.Delete)
	admin.Post("/tags", tagHandler.Create)
	admin.Delete("/tags/:id", adminOnly, tagHandler.Delete)
	admin.Put("/:postId/comments/:commentId", adminOnly, commentHandler.Moderate)
	admin.Delete("/:postId/comments/:commentId", adminOnly, commentHandler.Delete)
	admin.Put("/:id", middleware.OwnerOrAdmin("id", postService.Owner), postHandler.Update)
	admin.Delete("/:id", middleware.OwnerOrAdmin("id", postService.Owner), postHandler.Delete)

	posts.Post("/:postId/comments", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
	}), commentHandler.Create)
	posts.Get("/:postId/comments", commentHandler.List)
	posts.Get("/:id", sessions.OptionalAuth(), postHandler.Get)

	// ==========================================
	// USER MANAGEMENT (Admin only)
	// ==========================================
	users := api.Group("/users", sessions.Authenticate(), adminOnly)
	users.Get("/", userHandler.List)
	users.Get("/search", userHandler.Search)
	users.Get("/:id", userHandler.Get)
	users.Post("/", userHandler.Create)
	users.Put("/:id", userHandler.Update)
	users.Patch("/:id/deactivate", userHandler.Deactivate)
	users.Delete("/:id", userHandler.Delete)
}
