package bootstrap

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"resume-insight/internal/admin"
	"resume-insight/internal/analyses"
	googleauth "resume-insight/internal/auth"
	"resume-insight/internal/contact"
	"resume-insight/internal/documents"
	"resume-insight/internal/gateway"
	"resume-insight/internal/jobstore"
	"resume-insight/internal/mailer"
	"resume-insight/internal/otp"
	"resume-insight/internal/services/health"
	"resume-insight/internal/shared/auth"
	"resume-insight/internal/shared/config"
	"resume-insight/internal/shared/server"
	"resume-insight/internal/shared/server/middleware"
	"resume-insight/internal/shared/storage/db"
	"resume-insight/internal/shared/storage/object"
	localstore "resume-insight/internal/shared/storage/object/local"
	s3store "resume-insight/internal/shared/storage/object/s3"
	"resume-insight/internal/shared/telemetry"
	"resume-insight/internal/users"
)

// App holds shared dependencies and the configured router.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Redis    *redis.Client
	Jobs     jobstore.Store
	Archive  object.ObjectStore
	Analyses *analyses.Service

	// Sweeper is set for the in-memory job store only.
	Sweeper *jobstore.MemoryStore
}

// Close releases connections opened by Build.
func (a *App) Close() {
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

// Build prepares dependencies and the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB

	counter, err := buildJobStore(ctx, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	archive, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Archive = archive

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		app.Close()
		return nil, err
	}

	var (
		analysisRepo analyses.Repo
		userRepo     users.Repo
		contactRepo  contact.Repo
	)
	if app.DB != nil {
		analysisRepo = &analyses.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
		contactRepo = &contact.PGRepo{DB: app.DB}
	} else {
		analysisRepo = analyses.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
		contactRepo = contact.NewMemoryRepo()
	}

	gw := gateway.NewClient(cfg.AIAPIURL, cfg.AIAPITimeout)
	analysisSvc := analyses.NewService(app.Jobs, gw, analysisRepo, archive)
	analysisSvc.StatusTTL = cfg.Cache.StatusTTL
	analysisSvc.ResultTTL = cfg.Cache.ResultTTL
	app.Analyses = analysisSvc

	mail := buildMailer(cfg)
	codes := otp.NewManager(app.Jobs, cfg.OTPTTL, cfg.OTPMaxAttempts)
	userSvc := users.NewService(userRepo, codes, mail, signer, cfg.AdminEmails)
	contactSvc := contact.NewService(contactRepo, mail, cfg.ContactNotifyEmail)

	googleSvc := googleauth.NewGoogleService(googleauth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		UIRedirect:   cfg.UIRedirectURL,
	}, app.Jobs, userSvc)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:      cfg,
		Verifier:    signer,
		RateCounter: counter,
		AnalysisHandler: analyses.NewHandler(analysisSvc, documents.Policy{
			AllowedExtensions: cfg.AllowedExtensions,
			MaxBytes:          cfg.MaxUploadBytes,
		}),
		UserHandler:    users.NewHandler(userSvc),
		GoogleAuth:     googleSvc,
		ContactHandler: contact.NewHandler(contactSvc),
		AdminHandler:   admin.NewHandler(userSvc, analysisSvc, contactSvc),
		Health:         buildHealth(app, gw),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"cache":        cfg.Cache.Backend,
		"object_store": cfg.ObjectStoreType,
		"database":     app.DB != nil,
		"ai_api_url":   cfg.AIAPIURL,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_disabled", map[string]any{"reason": "DATABASE_URL empty; using in-memory repositories"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_disabled", map[string]any{"reason": "connect failed; using in-memory repositories", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return sqlDB, nil
}

// buildJobStore selects the job store and the matching rate counter.
func buildJobStore(ctx context.Context, app *App) (middleware.WindowCounter, error) {
	cfg := app.Config
	if cfg.Cache.Backend == "redis" {
		client, err := jobstore.NewRedisClient(ctx, jobstore.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		app.Redis = client
		app.Jobs = jobstore.NewRedisStore(client, "resume-insight:", cfg.Cache.StatusTTL)
		return middleware.NewRedisCounter(client, "resume-insight:ratelimit:"), nil
	}

	mem := jobstore.NewMemoryStore(cfg.Cache.StatusTTL, nil)
	app.Jobs = mem
	app.Sweeper = mem
	return middleware.NewMemoryCounter(nil), nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(ctx, s3store.Options{
			Region:    cfg.AWSRegion,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			KMSKeyID:  cfg.SSEKMSKeyID,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, errors.Wrap(err, "init s3 object store")
		}
		return store, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildMailer(cfg config.Config) mailer.Mailer {
	if strings.TrimSpace(cfg.SMTP.Host) == "" {
		return mailer.LogMailer{IncludeBody: isDevLike(cfg.Env)}
	}
	return mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

func buildHealth(app *App, gw *gateway.Client) *health.Service {
	var dbPing, cachePing health.PingFunc
	if app.DB != nil {
		dbPing = func(ctx context.Context) error { return db.Ping(ctx, app.DB, 2*time.Second) }
	}
	if rs, ok := app.Jobs.(*jobstore.RedisStore); ok {
		cachePing = rs.Ping
	}
	return health.NewService(gw, dbPing, cachePing)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
