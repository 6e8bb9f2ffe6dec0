package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/gruzztop/gruzztop/internal/admin"
	"github.com/gruzztop/gruzztop/internal/alerts"
	"github.com/gruzztop/gruzztop/internal/auth"
	"github.com/gruzztop/gruzztop/internal/cache"
	"github.com/gruzztop/gruzztop/internal/catalog"
	"github.com/gruzztop/gruzztop/internal/config"
	"github.com/gruzztop/gruzztop/internal/db"
	"github.com/gruzztop/gruzztop/internal/logger"
	"github.com/gruzztop/gruzztop/internal/marketplace"
	"github.com/gruzztop/gruzztop/internal/messaging"
	"github.com/gruzztop/gruzztop/internal/metrics"
	mware "github.com/gruzztop/gruzztop/internal/middleware"
	"github.com/gruzztop/gruzztop/internal/support"
	"github.com/gruzztop/gruzztop/internal/user"
	"github.com/gruzztop/gruzztop/internal/validation"
	"github.com/gruzztop/gruzztop/internal/wallet"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	log := logger.Setup(cfg.Env)
	log.WithField("env", cfg.Env).Info("starting gruzztop")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.WithError(errors.Wrap(err, "connect database")).Fatal("startup failed")
	}
	defer pool.Close()

	redisCache := cache.New(cfg.Redis)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		log.WithError(err).Warn("redis unreachable, cache lookups will fall through to postgres")
	}

	queue := alerts.NewClient(cfg.Redis)
	defer queue.Close()
	dispatcher := alerts.NewDispatcher(log, queue)

	telegram, err := alerts.NewTelegramSender(cfg.Telegram, log)
	if err != nil {
		log.WithError(errors.Wrap(err, "telegram relay")).Fatal("startup failed")
	}

	// Services
	hub := messaging.NewHub(log)
	notifications := alerts.NewNotifications(log, alerts.NewPostgresNotificationStore(pool), hub)
	tokens := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.TTL)

	authSvc := auth.NewService(log, auth.NewPostgresStore(pool), tokens, cfg.Admin.BootstrapSecret)
	catalogSvc := catalog.NewService(log, catalog.NewPostgresStore(pool), redisCache)
	chatSvc := messaging.NewService(log, messaging.NewPostgresStore(pool), hub, notifications, cfg.Chat.RetentionWindow)
	marketSvc := marketplace.NewService(log, marketplace.NewPostgresStore(pool), notifications, chatSvc, marketplace.PriorityFees{
		High:   cfg.Wallet.HighPriorityFee,
		Urgent: cfg.Wallet.UrgentPriorityFee,
	})
	walletSvc := wallet.NewService(log, wallet.NewPostgresStore(pool), dispatcher, notifications, wallet.Limits{
		MinDeposit:    cfg.Wallet.MinDeposit,
		MinWithdrawal: cfg.Wallet.MinWithdrawal,
	})
	supportSvc := support.NewService(log, support.NewPostgresStore(pool), dispatcher, notifications)
	adminStore := admin.NewPostgresStore(pool)
	adminSvc := admin.NewService(log, adminStore, redisCache, dispatcher, notifications)

	// Background work
	worker := alerts.NewServer(cfg.Redis, cfg.Worker.Concurrency, log)
	if err := worker.Start(alerts.NewWorker(log, telegram, adminStore, chatSvc, chatSvc).Mux()); err != nil {
		log.WithError(errors.Wrap(err, "start task worker")).Fatal("startup failed")
	}
	scheduler, err := alerts.NewScheduler(log, cfg.Chat.PurgeSchedule, dispatcher)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	scheduler.Start()

	authLimit := mware.RateLimit(cfg.HTTP.AuthRateLimit, int(cfg.HTTP.AuthRateLimit)*2, mware.ByIP, log)
	chatLimit := mware.RateLimit(cfg.Chat.MessagesPerSecond, cfg.Chat.MessageBurst, mware.ByUser, log)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()
	e.Use(middleware.RequestID())
	e.Use(mware.RequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(mware.ValidIDs)
	e.Use(middleware.CORS())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		rctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(rctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		if err := redisCache.Ping(rctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "redis unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	authH := auth.NewHandler(authSvc)
	userH := user.NewHandler(log, user.NewPostgresStore(pool))
	catalogH := catalog.NewHandler(catalogSvc)
	marketH := marketplace.NewHandler(marketSvc)
	walletH := wallet.NewHandler(walletSvc)
	chatH := messaging.NewHandler(log, chatSvc, hub)
	notifyH := alerts.NewHandler(notifications)
	supportH := support.NewHandler(supportSvc)
	adminH := admin.NewHandler(adminSvc)

	// Public routes
	authGroup := e.Group("/auth", authLimit)
	authGroup.POST("/signup", authH.Signup)
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/bootstrap-admin", authH.BootstrapAdmin)

	e.GET("/user/:id/profile", userH.PublicProfile)
	e.GET("/categories", catalogH.List)
	e.GET("/orders", marketH.ListOrders)
	e.GET("/executors/:id/reviews", marketH.ExecutorReviews)

	// Protected routes
	api := e.Group("", mware.JWT(tokens), mware.RequireActive(adminSvc, log))

	api.GET("/auth/me", authH.Me)
	api.POST("/auth/password", authH.ChangePassword)
	api.PATCH("/user/profile", userH.UpdateProfile)

	api.POST("/orders", marketH.CreateOrder, mware.RequireRoles(mware.RoleClient))
	api.GET("/orders/my", marketH.MyOrders)
	api.GET("/orders/:id", marketH.GetOrder)
	api.PATCH("/orders/:id", marketH.UpdateOrder, mware.RequireRoles(mware.RoleClient))
	api.POST("/orders/:id/cancel", marketH.CancelOrder, mware.RequireRoles(mware.RoleClient))
	api.POST("/orders/:id/complete", marketH.CompleteOrder, mware.RequireRoles(mware.RoleClient))
	api.POST("/orders/:id/bids", marketH.PlaceBid, mware.RequireRoles(mware.RoleExecutor))
	api.GET("/orders/:id/bids", marketH.ListBids)
	api.POST("/bids/:id/accept", marketH.AcceptBid, mware.RequireRoles(mware.RoleClient))
	api.POST("/bids/:id/reject", marketH.RejectBid, mware.RequireRoles(mware.RoleClient))
	api.POST("/bids/:id/withdraw", marketH.WithdrawBid, mware.RequireRoles(mware.RoleExecutor))
	api.POST("/orders/:id/review", marketH.CreateReview, mware.RequireRoles(mware.RoleClient))
	api.GET("/orders/:id/review", marketH.GetOrderReview)

	api.GET("/wallet/balance", walletH.Balance)
	api.GET("/wallet/transactions", walletH.Transactions)
	api.POST("/wallet/deposits", walletH.Deposit)
	api.POST("/wallet/withdrawals", walletH.Withdraw)

	api.POST("/conversations", chatH.Start)
	api.GET("/conversations", chatH.List)
	api.GET("/conversations/:id/messages", chatH.Messages)
	api.POST("/conversations/:id/messages", chatH.Send, chatLimit)
	api.POST("/conversations/:id/read", chatH.MarkRead)
	api.DELETE("/conversations/:id", chatH.Delete)
	api.GET("/presence/:id", chatH.Presence)
	api.GET("/ws", chatH.ServeWS)

	api.GET("/notifications", notifyH.List)
	api.POST("/notifications/read-all", notifyH.MarkAllRead)
	api.POST("/notifications/:id/read", notifyH.MarkRead)

	api.POST("/support/tickets", supportH.Create)
	api.GET("/support/tickets", supportH.Mine)

	// Admin routes
	adm := e.Group("/admin", mware.JWT(tokens), mware.RequireActive(adminSvc, log), mware.AdminGuard)

	adm.GET("/stats", adminH.Stats)
	adm.GET("/users", adminH.Users)
	adm.POST("/users/:id/ban", adminH.Ban)
	adm.POST("/users/:id/unban", adminH.Unban)
	adm.POST("/users/:id/role", adminH.SetRole)
	adm.POST("/users/:id/balance", walletH.Adjust)
	adm.GET("/users/:id/transactions", walletH.AdminUserTransactions)
	adm.GET("/orders", adminH.Orders)
	adm.GET("/wallets", adminH.Wallets)
	adm.POST("/broadcasts", adminH.Broadcast)
	adm.GET("/broadcasts", adminH.Broadcasts)

	adm.POST("/categories", catalogH.Create)
	adm.PATCH("/categories/:id", catalogH.Update)
	adm.DELETE("/categories/:id", catalogH.Delete)

	adm.GET("/reviews", marketH.AdminListReviews)
	adm.PATCH("/reviews/:id", marketH.ModerateReview)

	adm.GET("/transactions", walletH.AdminListTransactions)
	adm.POST("/transactions/:id/approve", walletH.Approve)
	adm.POST("/transactions/:id/reject", walletH.Reject)

	adm.GET("/conversations", chatH.AdminList)
	adm.GET("/conversations/:id/messages", chatH.AdminMessages)
	adm.POST("/conversations/:id/permanent-delete", chatH.PermanentlyDelete)

	adm.GET("/tickets", supportH.AdminList)
	adm.POST("/tickets/:id/reply", supportH.Reply)

	e.Server.ReadTimeout = cfg.HTTP.ReadTimeout
	e.Server.WriteTimeout = cfg.HTTP.WriteTimeout
	e.Server.IdleTimeout = cfg.HTTP.IdleTimeout

	go func() {
		log.WithField("address", cfg.HTTP.Address).Info("http server listening")
		if err := e.Start(cfg.HTTP.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(errors.Wrap(err, "http shutdown")).Error("graceful shutdown failed")
	}
	scheduler.Stop(shutdownCtx)
	worker.Shutdown()
	log.Info("server stopped")
}
