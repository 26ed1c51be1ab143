package main

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lancehub-io/lancehub/internal/alerts"
	"github.com/lancehub-io/lancehub/internal/auth"
	"github.com/lancehub-io/lancehub/internal/chat"
	"github.com/lancehub-io/lancehub/internal/config"
	"github.com/lancehub-io/lancehub/internal/contracts"
	"github.com/lancehub-io/lancehub/internal/db"
	"github.com/lancehub-io/lancehub/internal/jobs"
	mware "github.com/lancehub-io/lancehub/internal/middleware"
	"github.com/lancehub-io/lancehub/internal/services"
	"github.com/lancehub-io/lancehub/internal/storage"
	"github.com/lancehub-io/lancehub/internal/user"
	"github.com/lancehub-io/lancehub/internal/wallet"
)

func main() {
	config.Load()
	db.Init()
	alerts.Init()
	defer alerts.Close()

	contractSvc := contracts.NewService(contracts.NewPostgresStore(db.Conn), config.Escrow())
	contractH := contracts.NewHandler(contractSvc)
	chatH := chat.NewHandler(contractSvc)

	disk, err := storage.NewDisk(config.UploadDir(), config.BaseURL())
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	uploadH := storage.NewHandler(disk)

	e := echo.New()
	e.HideBanner = true
	e.Validator = mware.NewRequestValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	// Health and root routes
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "lancehub"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if db.Conn == nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db not initialized"})
		}
		if err := db.Conn.Ping(context.Background()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Public routes
	// Auth routes with per-IP rate limiting to protect signup/login from abuse
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/signup", auth.Signup)
	authGroup.POST("/login", auth.Login)

	e.GET("/users/:id/profile", user.GetPublicProfile)
	e.GET("/services", services.ListServices)
	e.GET("/jobs", jobs.ListJobs)
	e.GET("/jobs/:id", jobs.GetJob)
	e.Static("/uploads", config.UploadDir())

	// Protected routes
	api := e.Group("")
	api.Use(mware.JWTMiddleware)

	api.GET("/auth/me", auth.Me)
	api.PATCH("/users/profile", user.UpdateProfile)

	api.GET("/wallet/balance", wallet.Balance)
	api.GET("/wallet/transactions", wallet.GetUserTransactions)
	api.POST("/wallet/topup", wallet.TopupInit)
	api.POST("/wallet/topup/:id/confirm", wallet.ConfirmTopup)

	api.POST("/services", services.CreateService, mware.RequireUserType("seller"))
	api.GET("/services/me", services.GetMyServices, mware.RequireUserType("seller"))

	api.POST("/jobs", jobs.CreateJob, mware.RequireUserType("buyer"))
	api.POST("/jobs/:id/apply", jobs.Apply, mware.RequireUserType("seller"))
	api.GET("/jobs/:id/applications", jobs.ListApplications, mware.RequireUserType("buyer"))
	api.PATCH("/jobs/:id/applications/:application_id", jobs.DecideApplication, mware.RequireUserType("buyer"))

	api.POST("/contracts", contractH.CreateContract, mware.RequireUserType("buyer"))
	api.GET("/contracts", contractH.ListMyContracts)
	api.GET("/contracts/stats", contractH.OrderStats)
	api.GET("/contracts/:id", contractH.GetContract)
	api.PATCH("/contracts/:id", contractH.UpdateContract)
	api.POST("/contracts/:id/milestones", contractH.CreateMilestone, mware.RequireUserType("buyer"))
	api.GET("/contracts/:id/milestones", contractH.ListMilestones)
	api.PATCH("/contracts/:id/milestones/:milestone_id", contractH.UpdateMilestoneStatus, mware.RequireUserType("buyer"))

	api.POST("/chats", chatH.OpenChat)
	api.GET("/chats", chatH.ListChats)
	api.GET("/chats/:id/unread", chatH.UnreadCount)
	api.GET("/chats/:id/ws", chat.ChatWS)
	api.POST("/chats/:id/messages", chatH.SendMessage)
	api.GET("/chats/:id/messages", chatH.ListMessages)
	api.POST("/chats/:id/messages/read", chatH.MarkRead)
	api.POST("/chats/:id/messages/:message_id/offer", chatH.OfferAction)

	api.GET("/notifications", alerts.ListNotifications)
	api.POST("/notifications/:id/read", alerts.MarkNotificationRead)

	api.POST("/uploads/:bucket", uploadH.Upload)

	if err := e.Start(":" + config.Port()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
