package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	_ "github.com/jhoicas/einvoice-gateway/docs"
	"github.com/jhoicas/einvoice-gateway/internal/bootstrap"
	httpRouter "github.com/jhoicas/einvoice-gateway/internal/interfaces/http"
	"github.com/jhoicas/einvoice-gateway/pkg/config"
	"github.com/jhoicas/einvoice-gateway/pkg/logger"
)

// @title                       e-Invoice Gateway API
// @version                     1.0
// @description                 Envío de facturas a ANAF e-Factura y KSeF.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("anaf_env", cfg.ANAF.Environment).
		Msg("iniciando API")

	ctx := context.Background()
	c, err := bootstrap.Build(ctx, cfg, log.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("inicialización")
	}
	defer c.Close()

	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
		// Un envío incluye la subida al proveedor; ANAF puede tardar.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * cfg.ANAF.Timeout,
		IdleTimeout:  60 * time.Second,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "e-Invoice Gateway API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		EInvoice:  c.Service,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("API detenida")
}
