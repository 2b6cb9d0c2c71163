package main // Entry point package

import (
	"context"
	"os"

	"github.com/joho/godotenv"    // optional .env loading for local runs
	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/blog-auth-service/internal/config"
	"github.com/iliyamo/blog-auth-service/internal/database"
	"github.com/iliyamo/blog-auth-service/internal/handler"
	"github.com/iliyamo/blog-auth-service/internal/mail"
	"github.com/iliyamo/blog-auth-service/internal/otp"
	"github.com/iliyamo/blog-auth-service/internal/queue"
	"github.com/iliyamo/blog-auth-service/internal/repository"
	"github.com/iliyamo/blog-auth-service/internal/router"
	"github.com/iliyamo/blog-auth-service/internal/service"
	"github.com/iliyamo/blog-auth-service/internal/throttle"
	"github.com/iliyamo/blog-auth-service/internal/token"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogger(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(db, cfg.DBName); err != nil {
			log.Fatal().Err(err).Msg("apply migrations")
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		// OTP codes, cooldowns, quotas and lockouts all live in Redis
		log.Fatal().Msg("redis unreachable")
	}
	defer rdb.Close()

	issuer, err := token.New(cfg.AccessSecret, cfg.RefreshSecret,
		cfg.AccessTTLMin, cfg.RefreshTTLDays, cfg.AccessIssuedAfter)
	if err != nil {
		log.Fatal().Err(err).Msg("token issuer")
	}

	sessions := repository.NewSessionRepo(db)
	users := repository.NewUserRepo(db)

	mailer := mail.New(cfg)
	if !mailer.Configured() {
		log.Warn().Msg("mail transport unconfigured; OTP requests will report unavailable")
	}
	otpStore := otp.NewStore(rdb, "otp")
	engine := otp.NewEngine(otpStore, mailer, cfg.Limits,
		func(ctx context.Context, event, email, sourceIP string) {
			_ = service.PublishSecurityEvent(ctx, queue.SecurityEvent{
				Type:     event,
				Subject:  email,
				SourceIP: sourceIP,
			})
		})
	gate := throttle.New(rdb, "login", cfg.Limits.LoginMaxFailures, cfg.Limits.LoginLockout)

	a := handler.NewAuthHandler(cfg, issuer, sessions, users, engine, gate, service.PublishSecurityEvent)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, db, rdb)
	router.RegisterAuth(e, a, issuer, rdb)

	// Security events drain into logs/security.log in the background.
	go func() {
		if err := queue.StartSecurityConsumer(); err != nil {
			log.Error().Err(err).Msg("security consumer stopped")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// setupLogger configures the global zerolog logger: human-readable
// console output outside prod, JSON lines in prod.
func setupLogger(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "prod" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
