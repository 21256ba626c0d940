package httpapi

import (
	"github.com/dmitrijs2005/cookieauth/internal/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with ambient middleware and every route.
// CORS is enabled only when allowedOrigins is non-empty.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), RequestLogger(h.logger), gin.Recovery())

	if len(allowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = allowedOrigins
		corsConfig.AllowCredentials = true
		corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", common.RequestIDHeaderName}
		corsConfig.ExposeHeaders = []string{common.RequestIDHeaderName}
		router.Use(cors.New(corsConfig))
	}

	router.GET("/health", h.Health)
	router.GET("/", h.RequireAccess(), h.Index)

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/login", h.Login)
		authRoutes.GET("/token/refresh", h.RequireRefresh(), h.Refresh)
		authRoutes.POST("/logout", h.OptionalAccess(), h.Logout)
	}

	userRoutes := router.Group("/user")
	{
		userRoutes.POST("/create", h.CreateUser)
		userRoutes.PATCH("/password/update", h.RequireAccess(), h.UpdatePassword)
	}

	return router
}
