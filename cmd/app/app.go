package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vecollab/backend/internal/api"
	v1 "github.com/vecollab/backend/internal/api/handler/v1"
	"github.com/vecollab/backend/internal/config"
	"github.com/vecollab/backend/internal/db"
	"github.com/vecollab/backend/internal/logger"
	"github.com/vecollab/backend/internal/pkg/identity"
	"github.com/vecollab/backend/internal/pkg/mail"
	"github.com/vecollab/backend/internal/pkg/objectstore"
	"github.com/vecollab/backend/internal/pkg/search"
	"github.com/vecollab/backend/internal/pkg/tasks"
	"github.com/vecollab/backend/internal/repository"
	"github.com/vecollab/backend/internal/repository/dao"
	"github.com/vecollab/backend/internal/scheduler"
	"github.com/vecollab/backend/internal/service"
	"github.com/vecollab/backend/internal/transport"
)

const (
	shutdownTimeout = 15 * time.Second
	jobTimeout      = 10 * time.Minute
	taskTimeout     = time.Minute
	maxTaskWorkers  = 8
)

func Start() error {
	conf, err := config.Load("./cmd/app/config.yml")
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbURL := os.Getenv("DATABASE_URL")
	var postgresDB *gorm.DB
	if dbURL != "" {
		postgresDB, err = db.OpenPostgresWithURL(dbURL)
	} else {
		postgresDB, err = db.OpenPostgres(conf.Postgres)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database -> %w", err)
	}
	if err = dao.InitTables(postgresDB); err != nil {
		return fmt.Errorf("failed to initialize tables -> %w", err)
	}

	mongoDB, err := db.OpenMongo(ctx, conf.Mongo)
	if err != nil {
		return fmt.Errorf("failed to initialize blob storage -> %w", err)
	}
	defer func() { _ = mongoDB.Client().Disconnect(context.Background()) }()
	blobs := objectstore.NewGridFS(mongoDB)

	mailer, err := mail.NewMailer(mail.Config{
		Host:     conf.SMTP.Host,
		Port:     conf.SMTP.Port,
		Username: conf.SMTP.Username,
		Password: conf.SMTP.Password,
		Sender:   conf.SMTP.Sender,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize mailer -> %w", err)
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	index := search.NewIndex(search.Config{
		BaseURL:  conf.Search.BaseURL,
		Username: conf.Search.Username,
		Password: conf.Search.Password,
	}, httpClient)

	verifier, err := identity.NewVerifier(conf.Keycloak.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier -> %w", err)
	}
	var cache identity.Cache = identity.NopCache{}
	if conf.Redis.URL != "" {
		redisCache, err := identity.NewRedisCache(ctx, conf.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize identity cache -> %w", err)
		}
		defer func() { _ = redisCache.Close() }()
		cache = redisCache
	}
	directory := identity.NewAdminClient(identity.AdminConfig{
		BaseURL:  conf.Keycloak.BaseURL,
		Realm:    conf.Keycloak.Realm,
		Username: conf.Keycloak.AdminUsername,
		Password: conf.Keycloak.AdminPassword,
	}, httpClient, cache)

	runner := tasks.NewRunner(maxTaskWorkers, taskTimeout)
	defer runner.Shutdown()

	hub := transport.NewHub(verifier, conf.API.AllowedCORSDomains)

	profileRepo := repository.NewProfileRepository(dao.NewProfileDAO(postgresDB))
	spaceRepo := repository.NewSpaceRepository(dao.NewSpaceDAO(postgresDB))
	postRepo := repository.NewPostRepository(dao.NewPostDAO(postgresDB))
	planRepo := repository.NewPlanRepository(dao.NewPlanDAO(postgresDB))
	invitationRepo := repository.NewInvitationRepository(dao.NewInvitationDAO(postgresDB))
	aclRepo := repository.NewACLRepository(dao.NewACLDAO(postgresDB))
	chatRepo := repository.NewChatRepository(dao.NewChatDAO(postgresDB))
	notificationRepo := repository.NewNotificationRepository(dao.NewNotificationDAO(postgresDB))
	reportRepo := repository.NewReportRepository(dao.NewReportDAO(postgresDB))
	taxonomyRepo := repository.NewTaxonomyRepository(dao.NewTaxonomyDAO(postgresDB))

	notificationService := service.NewNotificationService(notificationRepo, profileRepo, hub, mailer)
	chatService := service.NewChatService(chatRepo, profileRepo, hub, mailer)
	aclService := service.NewACLService(aclRepo, profileRepo, spaceRepo)
	profileService := service.NewProfileService(profileRepo, notificationService)
	spaceService := service.NewSpaceService(spaceRepo, postRepo, aclService, blobs, notificationService)
	postService := service.NewPostService(postRepo, spaceRepo, aclService, profileRepo, profileService, blobs)
	planService := service.NewPlanService(planRepo, invitationRepo, profileRepo, blobs, index, notificationService, runner)
	reportService := service.NewReportService(reportRepo, aclService, postService, planService, profileService, spaceService, chatService)
	authService, err := service.NewAuthService(directory, profileRepo, conf.API.DummyPersonasPasscode)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service -> %w", err)
	}
	startupService := service.NewStartupService(
		dao.NewIndexes(postgresDB),
		profileService,
		aclService,
		taxonomyRepo,
		blobs,
		aclService,
		service.StartupOptions{
			InitialAdmin:      conf.Startup.InitialAdminUsername,
			ForceIndexRebuild: conf.Startup.ForceIndexRebuild,
		},
	)

	if err = startupService.Run(ctx); err != nil {
		return fmt.Errorf("failed to run startup routine -> %w", err)
	}

	v1.RegisterSocketEvents(hub, notificationService, chatService)
	go hub.Run(ctx)

	jobs := scheduler.New(aclService, chatService, startupService, jobTimeout)
	if err = jobs.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler -> %w", err)
	}

	s := api.NewServer(conf, verifier, api.Services{
		Plans:         planService,
		Posts:         postService,
		Spaces:        spaceService,
		Profiles:      profileService,
		Auth:          authService,
		Notifications: notificationService,
		Chat:          chatService,
		Reports:       reportService,
		ACL:           aclService,
		Taxonomy:      startupService,
	}, hub)

	addr := ":" + s.Config.API.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zap.L().Info(fmt.Sprintf("starting server at %v", addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start the server -> %w", err)
		}
	case <-ctx.Done():
		zap.L().Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("server shutdown failed", zap.Error(err))
	}
	if err = jobs.Stop(shutdownCtx); err != nil {
		zap.L().Error("scheduler shutdown failed", zap.Error(err))
	}

	return nil
}
