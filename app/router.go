// Package app wires the HTTP API together
package app

import (
	"bitwise74/user-api/app/auth"
	"bitwise74/user-api/app/root"
	"bitwise74/user-api/app/user"
	"bitwise74/user-api/db"
	"bitwise74/user-api/internal"
	"bitwise74/user-api/internal/service"
	"bitwise74/user-api/internal/store"
	"bitwise74/user-api/pkg/middleware"
	"bitwise74/user-api/pkg/security"
	"fmt"
	"net/http"
	"strings"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var responseCache = persist.NewMemoryStore(time.Minute)

type App struct {
	Router *gin.Engine
	Deps   *internal.Deps

	cleanup *cron.Cron
}

// Options holds the router settings that don't belong to any dependency
type Options struct {
	CORSOrigins []string
	RateLimit   int
	BodyLimit   int64
	Turnstile   middleware.TurnstileConfig
}

// NewRouter builds every dependency from the loaded configuration, starts
// the background workers and returns a ready to serve App
func NewRouter() (*App, error) {
	env := viper.GetString("app.env")
	makeLogger(env, viper.GetString("app.log_level"))

	gormDB, err := db.New(db.Config{
		Driver:          viper.GetString("database.driver"),
		DSN:             viper.GetString("database.dsn"),
		MaxOpenConns:    viper.GetInt("database.max_open_conns"),
		MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
		Debug:           env == "development",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	sessions, err := security.NewSessionTokens(
		viper.GetString("jwt.secret"),
		viper.GetDuration("jwt.expires_in"),
		viper.GetString("jwt.issuer"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session tokens, %w", err)
	}

	codec, err := security.NewVerificationCodec(viper.GetString("jwt.secret"), viper.GetDuration("verification.expires_in"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize verification tokens, %w", err)
	}

	mailCfg := service.MailConfig{
		Host:        viper.GetString("mail.host"),
		Port:        viper.GetInt("mail.port"),
		Username:    viper.GetString("mail.username"),
		Password:    viper.GetString("mail.password"),
		From:        viper.GetString("mail.from"),
		FrontendURL: viper.GetString("app.frontend_url"),
	}

	var sender service.MailSender = service.LogSender{FrontendURL: mailCfg.FrontendURL}
	if mailCfg.Enabled() {
		mailer := service.NewMailer(mailCfg)
		sender = mailer

		// Don't hold up startup on a slow SMTP server
		go func() {
			if err := mailer.Ping(); err != nil {
				zap.L().Warn("SMTP server unreachable, verification mails will fail", zap.Error(err))
				return
			}
			zap.L().Info("SMTP server reachable", zap.String("host", mailCfg.Host))
		}()
	} else {
		zap.L().Warn("No SMTP server configured, verification links will only be logged")
	}

	d := &internal.Deps{
		DB:       gormDB,
		Users:    store.NewUsers(gormDB),
		Sessions: sessions,
		Codec:    codec,
		Argon: security.NewWithCost(
			viper.GetUint32("argon.memory"),
			viper.GetUint32("argon.iterations"),
			uint8(viper.GetUint("argon.parallelism")),
		),
		MailQueue: service.NewMailQueue(
			sender,
			viper.GetInt("mail.workers"),
			viper.GetInt("mail.queue_size"),
			viper.GetDuration("mail.send_timeout"),
		),
		Env:   env,
		Debug: env == "development",
	}

	d.Accounts = service.NewAccounts(service.AccountsConfig{
		Users:    d.Users,
		Hasher:   d.Argon,
		Sessions: d.Sessions,
		Codec:    d.Codec,
		Notifier: d.MailQueue,
	})

	a := &App{
		Router: gin.New(),
		Deps:   d,
	}

	Routes(a.Router, d, Options{
		CORSOrigins: splitList(viper.GetStringSlice("host.cors_origins")),
		RateLimit:   viper.GetInt("security.rate_limit"),
		BodyLimit:   viper.GetInt64("security.body_limit"),
		Turnstile: middleware.TurnstileConfig{
			Enabled: viper.GetBool("cloudflare.turnstile.enabled"),
			Secret:  viper.GetString("cloudflare.turnstile.secret_token"),
		},
	})

	d.MailQueue.StartWorkerPool()

	a.cleanup, err = service.AccountCleanup(
		viper.GetString("cleanup.unverified_schedule"),
		viper.GetDuration("cleanup.unverified_max_age"),
		d.Accounts,
	)
	if err != nil {
		d.MailQueue.Close()
		return nil, err
	}

	return a, nil
}

// Routes attaches the global middleware and every endpoint to router
func Routes(router *gin.Engine, d *internal.Deps, o Options) {
	if o.BodyLimit <= 0 {
		o.BodyLimit = 1 << 20
	}

	corsCfg := cors.Config{
		AllowOrigins:     o.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(o.CORSOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}

	router.Use(
		cors.New(corsCfg),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == http.MethodHead
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetUint("userID"); v != 0 {
					fields = append(fields, zap.Uint("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Endpoint not found",
			"requestID": c.GetString("requestID"),
		})
	})

	jwt := middleware.NewJWTMiddleware(d.Sessions, d.Users)
	turnstile := middleware.NewTurnstileMiddleware(o.Turnstile)
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: o.RateLimit,
		Burst:             o.RateLimit * 2,
	})
	bodyLimit := middleware.BodySizeLimiter(o.BodyLimit)

	// GET /			-> API index
	router.GET("/", cacheFor(60), root.Index)

	main := router.Group("/api", rateLimiter, bodyLimit)
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		main.HEAD("/heartbeat", cacheFor(5), root.Heartbeat)

		// GET /api/health		-> Reports the server and database status
		main.GET("/health", func(c *gin.Context) { root.Health(c, d) })
	}

	a := main.Group("/auth")
	{
		// POST /api/auth/register	-> Registers a new unverified user
		a.POST("/register", turnstile, func(c *gin.Context) { auth.AuthRegister(c, d) })

		// POST /api/auth/login		-> Logs in a user and returns a JWT token
		a.POST("/login", func(c *gin.Context) { auth.AuthLogin(c, d) })

		// GET /api/auth/verify		-> Activates the user a verification link points to
		a.GET("/verify", func(c *gin.Context) { auth.AuthVerify(c, d) })

		// POST /api/auth/resend-verification	-> Sends a new verification link
		a.POST("/resend-verification", func(c *gin.Context) { auth.AuthResend(c, d) })
	}

	u := main.Group("/users", jwt)
	{
		// GET /api/users		-> Lists every user by last login
		u.GET("", func(c *gin.Context) { user.UserList(c, d) })

		// POST /api/users/block	-> Blocks the selected users
		u.POST("/block", func(c *gin.Context) { user.UserBlock(c, d) })

		// POST /api/users/unblock	-> Unblocks the selected users
		u.POST("/unblock", func(c *gin.Context) { user.UserUnblock(c, d) })

		// POST /api/users/delete	-> Deletes the selected users
		u.POST("/delete", func(c *gin.Context) { user.UserDelete(c, d) })

		// POST /api/users/delete-unverified	-> Deletes every unverified user
		u.POST("/delete-unverified", func(c *gin.Context) { user.UserDeleteUnverified(c, d) })
	}
}

// Close stops the background workers and the database pool
func (a *App) Close() {
	if a.cleanup != nil {
		<-a.cleanup.Stop().Done()
	}

	a.Deps.MailQueue.Close()

	if sqlDB, err := a.Deps.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func makeLogger(env, level string) {
	cfg := zap.NewProductionConfig()

	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + t.Format("15:04:05.000") + reset)
		}
		cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + ec.TrimmedPath() + reset)
		}
	}

	if l, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(l)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

// splitList accepts both TOML arrays and comma separated env values
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, s := range strings.Split(item, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(responseCache, time.Second*time.Duration(sec))
}
