package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "submission-backend/internal/auth"
	"submission-backend/internal/notify"
	"submission-backend/internal/queue"
	"submission-backend/internal/shared/config"
	"submission-backend/internal/shared/server"
	"submission-backend/internal/shared/storage/db"
	"submission-backend/internal/shared/storage/object"
	localstore "submission-backend/internal/shared/storage/object/local"
	s3store "submission-backend/internal/shared/storage/object/s3"
	"submission-backend/internal/shared/telemetry"
	"submission-backend/internal/submissions"
	"submission-backend/internal/users"
	"submission-backend/internal/workerproc"
)

const defaultRegion = "us-east-1"

// App holds shared dependencies for every entrypoint.
type App struct {
	Config             config.Config
	Router             *gin.Engine
	DB                 *sql.DB
	Store              object.ObjectStore
	Queue              queue.Client
	LocalQueue         *queue.LocalClient
	SubmissionsRepo    submissions.Repo
	UsersRepo          users.Repo
	SubmissionsService *submissions.Service
	UsersService       *users.Service
	Templates          *notify.Templates
	Dispatcher         *notify.Dispatcher
	SubmissionsHandler *submissions.Handler
	UsersHandler       *users.Handler
	GoogleAuth         *googleauth.GoogleService
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}

	if err := buildQueue(ctx, app); err != nil {
		return nil, err
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(app.Config, server.RouterDeps{
		Routes: []server.RouteRegistrar{app.SubmissionsHandler, app.UsersHandler, app.GoogleAuth},
		DB:     app.DB,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"object_store": cfg.ObjectStoreType,
		"queue":        queueKind(cfg),
		"database":     sqlDB != nil,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	opts := db.OptionsFor(db.RuntimeProfile())
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{
				"reason": "connect failed",
				"error":  err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, regionOrDefault(cfg.AWSRegion), cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildQueue picks SQS when a queue URL is configured. Otherwise jobs run
// in-process and are dispatched straight back into this App.
func buildQueue(ctx context.Context, app *App) error {
	if app.Config.UsesSQS() {
		client, err := queue.NewSQSClient(ctx, regionOrDefault(app.Config.AWSRegion), app.Config.SQSQueueURL)
		if err != nil {
			return fmt.Errorf("sqs client: %w", err)
		}
		app.Queue = client
		return nil
	}

	local := queue.NewLocalClient()
	local.Bind(func(ctx context.Context, msg queue.Message) error {
		return workerproc.Dispatch(ctx, app, msg)
	})
	app.LocalQueue = local
	app.Queue = local
	return nil
}

func buildServices(app *App) error {
	var subRepo submissions.Repo
	var userRepo users.Repo

	if app.DB != nil {
		subRepo = &submissions.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		subRepo = submissions.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	templates, err := notify.LoadTemplates(app.Config.NotifyTemplates)
	if err != nil {
		return fmt.Errorf("notification templates: %w", err)
	}

	userSvc := users.NewService(userRepo,
		string(submissions.RoleDataProvider),
		string(submissions.RoleManager),
		string(submissions.RoleSenior),
	)

	subSvc := &submissions.Service{
		Repo:       subRepo,
		Store:      app.Store,
		Jobs:       app.Queue,
		StaleAfter: app.Config.ReminderStaleAfter,
	}

	app.SubmissionsRepo = subRepo
	app.UsersRepo = userRepo
	app.SubmissionsService = subSvc
	app.UsersService = userSvc
	app.Templates = templates
	app.Dispatcher = &notify.Dispatcher{
		Directory: userSvc,
		Notifier:  notify.LogNotifier{From: app.Config.NotifyFrom},
		Templates: templates,
	}
	app.SubmissionsHandler = submissions.NewHandler(subSvc, app.Config.MaxUploadBytes)
	app.UsersHandler = users.NewHandler(userSvc)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)

	if app.SubmissionsHandler == nil || app.UsersHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

// ProcessParse runs the parse job for one submission.
func (a *App) ProcessParse(ctx context.Context, submissionID string) error {
	return a.SubmissionsService.ProcessParse(ctx, submissionID)
}

// Notify delivers one notification job.
func (a *App) Notify(ctx context.Context, msg queue.Message) error {
	return a.Dispatcher.Handle(ctx, msg)
}

// SendReminders runs one reminder sweep.
func (a *App) SendReminders(ctx context.Context) error {
	_, err := a.SubmissionsService.SendReminders(ctx)
	return err
}

var _ workerproc.Processor = (*App)(nil)

// Close releases the database pool. Lambda singletons are left open.
func (a *App) Close() error {
	if a.LocalQueue != nil {
		a.LocalQueue.Wait()
	}
	if a.DB == nil || db.IsLambdaRuntime() {
		return nil
	}
	return a.DB.Close()
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func regionOrDefault(region string) string {
	if strings.TrimSpace(region) == "" {
		return defaultRegion
	}
	return region
}

func queueKind(cfg config.Config) string {
	if cfg.UsesSQS() {
		return "sqs"
	}
	return "local"
}
