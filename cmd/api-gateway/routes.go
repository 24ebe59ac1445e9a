package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/supermen-api/api/swagger"
	"github.com/noah-isme/supermen-api/internal/authz"
	"github.com/noah-isme/supermen-api/internal/handler"
	internalmiddleware "github.com/noah-isme/supermen-api/internal/middleware"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/pkg/config"
	"github.com/noah-isme/supermen-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/supermen-api/pkg/middleware/cors"
	"github.com/noah-isme/supermen-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/supermen-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, svc services, readiness map[string]handler.ReadinessCheck) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(svc.metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(svc.metrics, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(svc.auth)
	registrationHandler := handler.NewRegistrationHandler(svc.registration)
	personnelHandler := handler.NewPersonnelHandler(svc.personnel)
	documentHandler := handler.NewDocumentHandler(svc.documents)
	certificationHandler := handler.NewCertificationHandler(svc.certifications)
	verificationHandler := handler.NewVerificationHandler(svc.certifications)
	dashboardHandler := handler.NewDashboardHandler(svc.dashboard)
	reportHandler := handler.NewReportHandler(svc.reports)
	notificationHandler := handler.NewNotificationHandler(svc.notifications)
	auditHandler := handler.NewAuditHandler(svc.audit)
	alertHandler := handler.NewAlertHandler(svc.alerts)
	configurationHandler := handler.NewConfigurationHandler(svc.configuration)

	var publicLimit, authLimit gin.HandlerFunc = passThrough, passThrough
	if cfg.RateLimit.Enabled {
		publicLimit = ratelimit.New(ratelimit.Config{
			RPS:     cfg.RateLimit.PublicRPS,
			Burst:   cfg.RateLimit.PublicBurst,
			IdleTTL: cfg.RateLimit.ClientIdleTTL,
			Logger:  logr,
		}).Middleware()
		authLimit = ratelimit.New(ratelimit.Config{
			RPS:     cfg.RateLimit.AuthRPS,
			Burst:   cfg.RateLimit.AuthBurst,
			IdleTTL: cfg.RateLimit.ClientIdleTTL,
			Logger:  logr,
		}).Middleware()
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authLimit, authHandler.Login)
	auth.POST("/refresh", authLimit, authHandler.Refresh)
	auth.POST("/logout", internalmiddleware.JWT(svc.auth), authHandler.Logout)

	registrations := api.Group("/registrations", publicLimit)
	registrations.POST("", registrationHandler.Start)
	registrations.GET("/:id", registrationHandler.Get)
	registrations.PATCH("/:id/fields", registrationHandler.Edit)
	registrations.POST("/:id/next", registrationHandler.Next)
	registrations.POST("/:id/back", registrationHandler.Back)
	registrations.POST("/:id/certificate", registrationHandler.AttachCertificate)
	registrations.POST("/:id/submit", registrationHandler.Submit)
	registrations.DELETE("/:id", registrationHandler.Discard)

	secured := api.Group("", internalmiddleware.JWT(svc.auth))
	allow := internalmiddleware.RequirePermission

	me := secured.Group("/me")
	me.GET("", personnelHandler.Me)
	me.PATCH("", personnelHandler.UpdateMe)
	me.PUT("/password", authHandler.ChangePassword)
	me.GET("/permissions", authHandler.Permissions)

	personnel := secured.Group("/personnel")
	personnel.GET("", allow(authz.ActionPersonnelViewRegion), personnelHandler.List)
	personnel.GET("/:id", allow(authz.ActionPersonnelViewRegion), personnelHandler.Get)
	personnel.POST("", allow(authz.ActionPersonnelManage), personnelHandler.Create)
	personnel.PUT("/:id", allow(authz.ActionPersonnelManage), personnelHandler.Update)
	personnel.POST("/:id/activate", allow(authz.ActionPersonnelManage), personnelHandler.Activate)
	personnel.POST("/:id/deactivate", allow(authz.ActionPersonnelManage), personnelHandler.Deactivate)
	personnel.POST("/:id/reset-password", allow(authz.ActionPersonnelManage), personnelHandler.ResetPassword)
	personnel.DELETE("/:id", allow(authz.ActionPersonnelManage), personnelHandler.Delete)

	documents := secured.Group("/documents")
	documents.POST("", allow(authz.ActionDocumentUpload),
		internalmiddleware.Audit(svc.audit, models.AuditActionDocumentUpload, "document"),
		documentHandler.Upload)
	documents.GET("/:id", documentHandler.Get)
	documents.GET("/:id/download", documentHandler.Download)

	certifications := secured.Group("/certifications")
	certifications.GET("", allow(authz.ActionCertificationViewOwn, authz.ActionCertificationViewRegion, authz.ActionCertificationViewAll), certificationHandler.List)
	certifications.POST("", allow(authz.ActionCertificationSubmit), certificationHandler.Submit)
	certifications.GET("/:id", certificationHandler.Get)
	certifications.DELETE("/:id", allow(authz.ActionCertificationDelete), certificationHandler.Delete)

	verifications := secured.Group("/verifications", allow(authz.ActionCertificationReview))
	verifications.GET("/pending", verificationHandler.Pending)
	verifications.POST("/:id/approve", verificationHandler.Approve)
	verifications.POST("/:id/reject", verificationHandler.Reject)
	verifications.POST("/bulk-approve", verificationHandler.BulkApprove)
	verifications.GET("/selection", verificationHandler.Selection)
	verifications.POST("/selection/toggle", verificationHandler.ToggleSelection)
	verifications.POST("/selection/select-all", verificationHandler.SelectAll)
	verifications.DELETE("/selection", verificationHandler.ClearSelection)

	secured.GET("/dashboard", allow(authz.ActionDashboardView), dashboardHandler.Summary)
	secured.GET("/reports/certifications", allow(authz.ActionReportExport), reportHandler.Certifications)
	secured.GET("/audit-logs", allow(authz.ActionAuditView), auditHandler.List)

	notifications := secured.Group("/notifications", allow(authz.ActionNotificationRead))
	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.POST("/:id/read", notificationHandler.MarkRead)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)

	alerts := secured.Group("/alerts", allow(authz.ActionAlertManage))
	alerts.GET("/rules", alertHandler.ListRules)
	alerts.POST("/rules", alertHandler.CreateRule)
	alerts.PUT("/rules/:id", alertHandler.UpdateRule)
	alerts.DELETE("/rules/:id", alertHandler.DeleteRule)
	alerts.POST("/run", alertHandler.Run)
	alerts.POST("/broadcast", alertHandler.Broadcast)

	configuration := secured.Group("/configuration", allow(authz.ActionConfigurationManage))
	configuration.GET("", configurationHandler.List)
	configuration.PUT("/bulk", configurationHandler.BulkUpdate)
	configuration.GET("/:key", configurationHandler.Get)
	configuration.PUT("/:key", configurationHandler.Update)

	return r
}

func passThrough(c *gin.Context) { c.Next() }
