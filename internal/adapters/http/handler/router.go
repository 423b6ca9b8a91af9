package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/ogurasousui/personnel-records/internal/platform/config"
	"github.com/rs/zerolog"
)

const healthCheckTimeout = 2 * time.Second

// Pinger はストレージの疎通確認を行います。
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewApp はルーティングとミドルウェアを設定した fiber.App を返します。
// pinger が nil の場合 /healthz は常に 200 を返します。
func NewApp(cfg config.ServerConfig, employees *EmployeeHandler, pinger Pinger, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "personnel-records",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(RequestLogger(log))
	app.Use(recover.New())

	app.Get("/healthz", healthz(pinger))
	employees.Register(app)

	return app
}

func healthz(pinger Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if pinger == nil {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
		defer cancel()

		if err := pinger.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
