package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-inventory-api/internal/handler"
	"github.com/noah-isme/facility-inventory-api/internal/middleware"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	"github.com/noah-isme/facility-inventory-api/internal/service"
	"github.com/noah-isme/facility-inventory-api/pkg/config"
	"github.com/noah-isme/facility-inventory-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/facility-inventory-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/facility-inventory-api/pkg/middleware/requestid"
)

type routeDeps struct {
	db           *sqlx.DB
	metrics      *service.MetricsService
	audit        middleware.AuditRecorder
	auth         *service.AuthService
	items        *service.ItemService
	reservations *service.ReservationService
	checks       *service.InventoryCheckService
	exports      *service.ExportService
	users        *service.UserService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.db)
	authHandler := handler.NewAuthHandler(deps.auth)
	itemHandler := handler.NewItemHandler(deps.items)
	orgHandler := handler.NewOrganizationHandler(deps.reservations)
	checkHandler := handler.NewInventoryCheckHandler(deps.checks)
	notificationHandler := handler.NewNotificationHandler(deps.items)
	exportHandler := handler.NewExportHandler(deps.exports)
	userHandler := handler.NewUserHandler(deps.users)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	api.GET("/inventory-checks/public", checkHandler.Public)
	api.GET("/exports/:token", exportHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))
	admin := middleware.AdminOnly()

	secured.POST("/auth/logout", authHandler.Logout)
	secured.POST("/auth/change-password", authHandler.ChangePassword)
	secured.GET("/auth/me", authHandler.Me)

	items := secured.Group("/items")
	items.GET("", itemHandler.List)
	items.GET("/lookup", itemHandler.Lookup)
	items.GET("/my-logs", itemHandler.MyLogs)
	items.GET("/unreturned", itemHandler.Unreturned)
	items.GET("/:barcode", itemHandler.Get)
	items.GET("/:barcode/logs", itemHandler.Logs)
	items.POST("/check-out", itemHandler.CheckOut)
	items.POST("/check-in", itemHandler.CheckIn)
	items.POST("/report-issue", itemHandler.ReportIssue)
	items.POST("/resolve-issue", admin, itemHandler.ResolveIssue)
	items.POST("", admin, itemHandler.Create)
	items.PUT("/:id", admin, itemHandler.Update)
	items.DELETE("/:id", admin, itemHandler.Delete)
	items.POST("/:barcode/log", admin, itemHandler.AddLog)
	items.POST("/:barcode/archive", admin, itemHandler.Archive)
	items.POST("/:barcode/maintenance", admin, itemHandler.Maintenance)

	orgs := secured.Group("/organizations")
	orgs.POST("/checkin", orgHandler.CheckIn)
	orgs.POST("/checkout", orgHandler.CheckOut)
	orgs.POST("/noshow", orgHandler.NoShow)
	orgs.GET("", orgHandler.Names)
	orgs.GET("/active", orgHandler.Active)
	orgs.GET("/all-logs", orgHandler.AllLogs)
	orgs.GET("/by-table/:tableBarcode", orgHandler.ByTable)
	orgs.GET("/:orgName", orgHandler.Get)

	secured.POST("/inventory-checks", checkHandler.Create)
	secured.GET("/inventory-checks", admin, checkHandler.List)

	secured.POST("/notifications/ems-alert", admin,
		middleware.Audit(deps.audit, models.AuditActionEMSAlert, "notifications"), notificationHandler.EMSAlert)
	secured.POST("/exports",
		middleware.Audit(deps.audit, models.AuditActionExport, "exports"), exportHandler.Create)

	users := secured.Group("/users", admin)
	users.GET("", userHandler.List)
	users.POST("", userHandler.Create)
	users.DELETE("/:id", userHandler.Delete)

	secured.GET("/metrics/summary", admin, metricsHandler.Summary)

	return r
}
