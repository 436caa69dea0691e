package http

import (
	"github.com/dmitrijs2005/xtouch/internal/logging"
	"github.com/gin-gonic/gin"
)

// NewRouter wires routes and middleware. limiter may be nil.
func NewRouter(h *Handler, log logging.Logger, secret []byte, limiter *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(log))
	r.Use(RequestLogger(log))
	r.Use(limiter.Handler())

	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	{
		api.POST("/register", h.Register)
		api.GET("/confirm/:token", h.ConfirmEmail)
		api.POST("/forgotpassword", h.ForgotPassword)
		api.POST("/confirmreset/:token", h.ResetPassword)
		api.POST("/login", h.Login)
		api.POST("/token/refresh", h.Refresh)

		api.GET("/publicProfile/:slug", h.GetPublicProfile)
		api.POST("/exchangeContact/:id", h.ExchangeContact)

		authed := api.Group("", RequireAuth(secret))
		{
			authed.POST("/users/me/deactivate", h.Deactivate)
			authed.DELETE("/users/me", h.DeleteAccount)

			authed.GET("/profile", h.GetOwnProfile)
			authed.POST("/profile", h.CreateProfile)
			authed.PUT("/profile/:id", h.UpdateProfile)
		}
	}

	return r
}
