package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/staffbook/config"
	"github.com/yoockh/staffbook/internal/api/handlers"
	"github.com/yoockh/staffbook/internal/api/middleware"
	"github.com/yoockh/staffbook/internal/api/routes"
	"github.com/yoockh/staffbook/internal/cache"
	"github.com/yoockh/staffbook/internal/events"
	"github.com/yoockh/staffbook/internal/logger"
	"github.com/yoockh/staffbook/internal/repositories"
	mongorepo "github.com/yoockh/staffbook/internal/repositories/mongo"
	pgrepo "github.com/yoockh/staffbook/internal/repositories/postgres"
	"github.com/yoockh/staffbook/internal/services"
	"github.com/yoockh/staffbook/internal/storage"
	"github.com/yoockh/staffbook/internal/web"
	"github.com/yoockh/staffbook/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := logger.New(cfg.Server.LogLevel)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// closers run in reverse order at shutdown
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	repo, closeStore, err := openRecordStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("record store init failed")
	}
	closers = append(closers, closeStore)

	files, err := openFileStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("file store init failed")
	}
	if c, ok := files.(interface{ Close() error }); ok {
		closers = append(closers, func() { _ = c.Close() })
	}
	log.WithField("driver", cfg.Uploads.Driver).Info("file store ready")

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = config.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.WithError(err).Fatal("redis init failed")
		}
		closers = append(closers, func() { _ = rdb.Close() })
		log.Info("redis connected")
	}

	deps := services.EmployeeDeps{
		Repo:   repo,
		Files:  files,
		Logger: log,
	}

	var publisher *events.RedisPublisher
	if rdb != nil {
		publisher = events.NewRedisPublisher(rdb)
		deps.Cache = cache.NewRedisCache(rdb, cfg.Redis.CacheTTL)
		deps.Events = publisher
	}

	if cfg.Uploads.Cleanup {
		if rdb != nil {
			pool := &workers.CleanupWorkerPool{
				Redis:      rdb,
				Files:      files,
				NumWorkers: cfg.Uploads.CleanupWorkers,
				Logger:     log,
			}
			if err := pool.Start(context.Background()); err != nil {
				log.WithError(err).Fatal("cleanup workers init failed")
			}
			// registered after the redis closer, so the pool drains first
			closers = append(closers, pool.Stop)
			deps.Reaper = workers.StreamReaper{Redis: rdb, Stream: pool.Stream}
		} else {
			deps.Reaper = workers.DirectReaper{Files: files}
		}
		log.Info("upload cleanup enabled")
	}

	svc := services.NewEmployeeService(deps)

	metrics := middleware.NewMetrics()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(metrics.Middleware())
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	router.SetHTMLTemplate(web.Templates())

	rd := routes.Deps{
		Employee: handlers.NewEmployeeHandler(svc),
		Uploads:  handlers.NewUploadHandler(files),
		Health:   handlers.NewHealthHandler(repo),
		Metrics:  metrics,
	}
	if publisher != nil {
		rd.WS = handlers.NewWSHandler(publisher, log, cfg.Server.AllowedOrigins)
	}
	routes.RegisterRoutes(router, rd)
	web.NewHandler(svc, log, rd.WS != nil).Register(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}

func openRecordStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (repositories.EmployeeRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := config.NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		log.Info("postgres connected")
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return pgrepo.NewEmployeeRepo(db), closeFn, nil

	default:
		client, err := config.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("database", cfg.Mongo.Database).Info("mongo connected")

		db := client.Database(cfg.Mongo.Database)
		if err := config.EnsureMongoIndexes(ctx, db); err != nil {
			log.WithError(err).Warn("mongo index creation failed")
		}
		closeFn := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}
		return mongorepo.NewEmployeeRepo(db), closeFn, nil
	}
}

func openFileStore(ctx context.Context, cfg *config.Config) (storage.FileStore, error) {
	if cfg.Uploads.Driver == config.UploadGCS {
		return storage.NewGCSStore(ctx, cfg.Uploads.GCSBucket, cfg.Uploads.GCSCredentials)
	}
	return storage.NewLocalStore(cfg.Uploads.Dir)
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
