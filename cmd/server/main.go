package main

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/juju/clock"
	"github.com/juju/loggo/v2"

	"lmis-backend/internal/audit"
	"lmis-backend/internal/auth"
	"lmis-backend/internal/config"
	"lmis-backend/internal/database"
	"lmis-backend/internal/httperr"
	"lmis-backend/internal/logging"
	"lmis-backend/internal/metrics"
	"lmis-backend/internal/models"
	"lmis-backend/internal/referencedata"
	"lmis-backend/internal/requisition"
	"lmis-backend/internal/users"
)

var logger = loggo.GetLogger("lmis.server")

func main() {
	cfg := config.Load()
	logFile, err := logging.Setup(logging.Options{Spec: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		logger.Criticalf("%v", err)
		os.Exit(1)
	}
	defer logFile.Close()

	database.Init(cfg)
	db := database.DB

	collector := metrics.NewCollector()
	registry, err := metrics.NewRegistry(collector)
	if err != nil {
		logger.Criticalf("%v", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{ErrorHandler: httperr.ErrorHandler})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(collector.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/metrics", metrics.Handler(registry))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(db, cfg.JWTSecret, cfg.TokenTTL, clock.WallClock))

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	protected.Get("/auth/me", auth.MeHandler(db))

	admin := auth.RequireRight(db, models.RightAdministration)
	referencedata.RegisterRoutes(protected, db, admin)
	users.RegisterRoutes(protected.Group("/users"), db, admin)

	requisitions := requisition.NewHandler(db, clock.WallClock, collector)
	requisitions.Register(protected.Group("/requisitions"), func(rights ...string) fiber.Handler {
		return auth.RequireRight(db, rights...)
	})
	requisitions.RegisterOrders(protected.Group("/facilities"))

	protected.Get("/audit-logs", admin, audit.ListAuditLogsHandler(db))
	protected.Post("/audit-logs/:id/undo", admin, audit.UndoAuditLogHandler(db, clock.WallClock))

	logger.Infof("listening on port %s", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logger.Criticalf("%v", err)
		os.Exit(1)
	}
}
