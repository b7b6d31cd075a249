package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"canteen/internal/auth"
	"canteen/internal/calendar"
	"canteen/internal/common"
	"canteen/internal/databases"
	"canteen/internal/env"
	"canteen/internal/logging"
	"canteen/internal/notify"
	v0common "canteen/internal/v0/common"
	"canteen/internal/v0/inventory"
	"canteen/internal/v0/meals"
	"canteen/internal/v0/menu"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	logger, err := logging.Setup(env.GetEnv(env.EnvLogLevel, "info"), env.GetEnv(env.EnvLogFile, ""))
	if err != nil {
		log.Fatal(err)
	}

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Every date in the canteen is a school-local date
	loc, err := calendar.LoadLocation(env.GetEnv(env.EnvTimezone, "UTC"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to load timezone")
	}
	clock := calendar.NewClock(loc)

	dbPath := env.GetEnv(env.EnvDBPath, "./internal/databases/canteen.db")
	db, err := databases.Open(dbPath)
	if err != nil {
		logger.WithError(err).WithField("path", dbPath).Fatal("Failed to open database")
	}
	defer db.Close()
	if err := databases.Migrate(db); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	// Notifications
	sinks := []notify.Sink{notify.NewDBSink(db)}
	if brokers := env.GetList(env.EnvKafkaBrokers, nil); len(brokers) > 0 {
		sinks = append(sinks, notify.NewKafkaSink(brokers, env.GetEnv(env.EnvKafkaTopic, "canteen.notifications")))
	}
	dispatcher := notify.NewDispatcher(logger, env.GetInt(env.EnvNotifyBuffer, notify.DefaultBufferSize), sinks...)

	// Auth components
	authRepo := auth.NewRepository(db)
	tokenStore := auth.NewTokenStore(authRepo)
	authHandler := auth.NewHandler(authRepo, tokenStore, logger)
	authMiddleware := auth.NewMiddleware(tokenStore, logger)

	// Menu components
	menuRepo := menu.NewRepository(db)
	menuEngine := menu.NewEngine(db, menuRepo, clock, logger, env.GetInt(env.EnvBulkParallelism, 4))
	catalog := menu.NewCatalog(db, menuRepo, logger)
	menuHandler := menu.NewHandler(menuEngine, catalog, menuRepo, clock, logger)

	// Meal components
	mealRepo := meals.NewRepository(db)
	ledger := meals.NewLedger(db, mealRepo, logger)
	subs := meals.NewSubscriptions(mealRepo, ledger, clock, logger)
	mealEngine := meals.NewEngine(mealRepo, menuRepo, ledger, subs, clock, logger)
	profile := meals.NewProfile(mealRepo, logger)
	reviews := meals.NewReviews(mealRepo, menuRepo, logger)
	mealHandler := meals.NewHandler(mealEngine, ledger, subs, profile, reviews, logger)

	// Inventory components
	invService := inventory.NewService(db, inventory.NewRepository(db), dispatcher, logger)
	invHandler := inventory.NewHandler(invService, logger)

	router := gin.New()
	router.Use(gin.Recovery(), v0common.RequestID(), logging.RequestLogger(logger))

	// Global routes
	global := router.Group("/api")
	common.RegisterRoutes(global, common.NewHandler(db, loc))

	// Auth routes (public + token-protected + admin)
	auth.RegisterRoutes(global, authHandler, authMiddleware)

	// v0 API routes
	v0Group := router.Group("/api/v0")
	{
		menu.RegisterRoutes(v0Group, menuHandler, authMiddleware)
		meals.RegisterRoutes(v0Group, mealHandler, authMiddleware)
		inventory.RegisterRoutes(v0Group, invHandler, authMiddleware)
	}

	timeout := env.GetDuration(env.EnvRequestTimeout, 30*time.Second)
	srv := &http.Server{
		Addr:              env.GetEnv(env.EnvAddr, ":9237"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	// The dispatcher outlives the signal so requests still draining during
	// shutdown can emit; Stop below flushes it.
	dispatcher.Start(context.Background())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(log.Fields{"addr": srv.Addr, "timezone": loc.String()}).Info("Canteen API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server stopped with error")
	}
	dispatcher.Stop()
}

/*
This project is the canteen backend API for the OpenSourceDUTH team. Menu scheduling, meal pickup and kitchen inventory for the school canteen.
API Copyright (C) 2025 OpenSourceDUTH
    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
