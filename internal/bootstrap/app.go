package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"skinscan-backend/internal/admin"
	googleauth "skinscan-backend/internal/auth"
	"skinscan-backend/internal/profiles"
	"skinscan-backend/internal/scans"
	"skinscan-backend/internal/services/health"
	"skinscan-backend/internal/shared/auth"
	"skinscan-backend/internal/shared/config"
	"skinscan-backend/internal/shared/server"
	"skinscan-backend/internal/shared/server/middleware"
	"skinscan-backend/internal/shared/storage/db"
	"skinscan-backend/internal/shared/storage/object"
	localstore "skinscan-backend/internal/shared/storage/object/local"
	s3store "skinscan-backend/internal/shared/storage/object/s3"
	"skinscan-backend/internal/users"
	"skinscan-backend/internal/vision"
	"skinscan-backend/internal/vision/gemini"
	"skinscan-backend/internal/vision/openai"
)

const (
	devJWTSecret       = "skinscan-dev-secret-change-me"
	defaultOpenAIModel = "gpt-4o"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	// Archive is nil when OBJECT_STORE=none.
	Archive object.Store
	Vision  vision.Client
	Tokens  *auth.JWTManager

	ScansRepo    scans.Repo
	UsersRepo    users.Repo
	ProfilesRepo profiles.Repo

	ScansService    *scans.Service
	UsersService    *users.Service
	ProfilesService *profiles.Service
	HealthService   *health.Service

	ScansHandler    *scans.Handler
	UsersHandler    *users.Handler
	ProfilesHandler *profiles.Handler
	AdminHandler    *admin.Handler
	GoogleAuth      *googleauth.GoogleService

	closers []io.Closer
}

// Build prepares every dependency from cfg and wires the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := buildTokens(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Archive: archive,
		Tokens:  tokens,
	}

	if err := buildVision(ctx, app); err != nil {
		return nil, err
	}

	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:      app.Config,
		Tokens:      users.NewLiveIdentityResolver(app.Tokens, app.UsersRepo),
		RateLimiter: middleware.NewRateLimiter(nil),
		Health:      app.HealthService,
		Scans:       app.ScansHandler,
		Users:       app.UsersHandler,
		Profiles:    app.ProfilesHandler,
		Admin:       app.AdminHandler,
		GoogleAuth:  app.GoogleAuth,
	})

	return app, nil
}

// Close releases the database pool and provider clients.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if cfg.IsDevLike() {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return sqlDB, nil
}

func buildArchive(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "local":
		return localstore.New(cfg.LocalStoreDir), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown OBJECT_STORE %q", cfg.ObjectStoreType)
	}
}

func buildTokens(cfg config.Config) (*auth.JWTManager, error) {
	secret := cfg.JWTSecret
	if strings.TrimSpace(secret) == "" {
		if !cfg.IsDevLike() {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
		log.Printf("bootstrap: JWT_SECRET empty; using development secret")
		secret = devJWTSecret
	}
	return auth.NewJWTManager(secret, cfg.JWTIssuer, cfg.AccessTokenTTL)
}

func buildVision(ctx context.Context, app *App) error {
	client, err := NewVisionClient(ctx, app.Config)
	if err != nil {
		return err
	}
	if closer, ok := client.(io.Closer); ok {
		app.closers = append(app.closers, closer)
	}
	app.Vision = client
	return nil
}

// NewVisionClient selects the model provider from cfg. A missing key yields
// the placeholder, so analyze answers 500 until one is configured.
func NewVisionClient(ctx context.Context, cfg config.Config) (vision.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			log.Printf("bootstrap: OPENAI_API_KEY empty; vision model disabled")
			return vision.PlaceholderClient{}, nil
		}
		model := cfg.LLMModel
		if strings.TrimSpace(model) == "" {
			model = defaultOpenAIModel
		}
		return openai.NewClient(cfg.OpenAIAPIKey, model, cfg.OpenAIBaseURL, cfg.LLMTimeout)
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			log.Printf("bootstrap: GEMINI_API_KEY empty; vision model disabled")
			return vision.PlaceholderClient{}, nil
		}
		return gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
	case "", "none":
		return vision.PlaceholderClient{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func buildServices(app *App) {
	if app.DB != nil {
		app.ScansRepo = &scans.PGRepo{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.ProfilesRepo = &profiles.PGRepo{DB: app.DB}
	} else {
		app.ScansRepo = scans.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
		app.ProfilesRepo = profiles.NewMemoryRepo()
	}

	app.ScansService = &scans.Service{
		Repo:       app.ScansRepo,
		Vision:     app.Vision,
		Classifier: scans.NewClassifier(app.Config.RefusalMarkersExtra...),
		Archive:    app.Archive,
	}
	app.UsersService = users.NewService(app.UsersRepo)
	app.ProfilesService = profiles.NewService(app.ProfilesRepo, app.Config.AdminEmails)
	app.HealthService = health.NewService(app.DB)

	app.ScansHandler = scans.NewHandler(app.ScansService)
	app.UsersHandler = users.NewHandler(app.UsersService, app.Tokens, app.ProfilesService)
	app.ProfilesHandler = profiles.NewHandler(app.ProfilesService)
	app.AdminHandler = admin.NewHandler(app.ProfilesService, app.ScansRepo, app.UsersRepo)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		app.UsersService,
		app.Tokens,
		app.ProfilesService,
	)
}
