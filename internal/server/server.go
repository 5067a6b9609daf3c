package server

import (
	"strings"

	"github.com/Kyz7/blog/internal/auth"
	"github.com/Kyz7/blog/internal/config"
	"github.com/Kyz7/blog/internal/response"
	"github.com/Kyz7/blog/internal/revocation"
	"github.com/Kyz7/blog/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"
)

const bodyLimit = 10 * 1024 * 1024

// Deps are the long-lived collaborators the HTTP layer is built from.
type Deps struct {
	Config      *config.Config
	DB          *gorm.DB
	Issuer      *auth.Issuer
	Revocations *revocation.Store
	Storage     storage.Storage
}

func New(deps Deps) *fiber.App {
	cfg := deps.Config
	app := fiber.New(fiber.Config{
		BodyLimit:    bodyLimit,
		ErrorHandler: response.ErrorHandler(cfg.IsProduction()),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	if !cfg.IsProduction() {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(strings.Fields(strings.ReplaceAll(cfg.CORSOrigins, ",", " ")), ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + auth.RefreshTokenHeader,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS, PATCH",
		AllowCredentials: true,
	}))

	app.Static("/uploads", cfg.UploadDir, fiber.Static{
		Compress:  true,
		ByteRange: true,
		Browse:    false,
		MaxAge:    3600,
	})

	SetupRoutes(app, deps)

	return app
}
