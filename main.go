package main

import (
	"bitwise74/user-api/app"
	"bitwise74/user-api/config"
	"bitwise74/user-api/db"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	err := config.Setup()
	if err != nil {
		if errors.Is(err, config.ErrMissingSecret) {
			os.Exit(1)
		}
		panic(err)
	}

	if viper.GetString("app.env") != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	if *config.MigrateOnly {
		// db.New applies pending migrations on open
		d, err := db.New(db.Config{
			Driver: viper.GetString("database.driver"),
			DSN:    viper.GetString("database.dsn"),
		})
		if err != nil {
			panic(err)
		}

		if sqlDB, err := d.DB(); err == nil {
			sqlDB.Close()
		}

		fmt.Println("Migrations applied")
		return
	}

	a, err := app.NewRouter()
	if err != nil {
		panic(err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("host.port")),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error

		zap.L().Info("Server starting",
			zap.String("addr", srv.Addr),
			zap.String("environment", viper.GetString("app.env")))

		if viper.GetBool("host.ssl.enabled") {
			err = srv.ListenAndServeTLS(
				viper.GetString("host.ssl.certificate_path"),
				viper.GetString("host.ssl.certificate_key_path"),
			)
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("Server forced to shut down", zap.Error(err))
	}

	a.Close()
	_ = zap.L().Sync()
}
