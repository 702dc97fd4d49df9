package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/config"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/http/handler"
	httpmiddleware "github.com/RSO-2024-25-skupina-03/authentication/internal/http/middleware"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/", authHandler.Root)
	r.GET("/health", authHandler.Health)
	r.POST("/jwt", authHandler.VerifyToken)

	tenantGroup := r.Group("/:tenant")
	{
		tenantGroup.GET("/health", authHandler.Health)
		tenantGroup.POST("/register", authHandler.Register)
		tenantGroup.POST("/login", authHandler.Login)
		tenantGroup.GET("/users/:user_id", authHandler.UserName)
	}

	return r
}
