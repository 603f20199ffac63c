package front

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/Storefront/internal/http/api/front/handlers"
	"github.com/router-for-me/Storefront/internal/storefront"
)

// Options wires optional pieces of the front routes.
type Options struct {
	Cookies     handlers.CookieConfig
	PublicURL   string
	Previewer   handlers.Previewer
	HealthCheck func(ctx context.Context) error
}

// RegisterFrontRoutes registers the JSON API and page payload routes.
func RegisterFrontRoutes(r *gin.Engine, svc *storefront.Service, opts Options) {
	if r == nil || svc == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(opts.HealthCheck)
	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/api")
	api.Use(sessionMiddleware(opts.Cookies))

	authHandler := handlers.NewAuthHandler(svc, opts.Cookies, opts.PublicURL)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/forgot-password", authHandler.ForgotPassword)
	api.POST("/auth/reset-password", authHandler.ResetPassword)
	api.GET("/auth/rate-limit", authHandler.RateLimit)

	brandHandler := handlers.NewBrandHandler(svc)
	productHandler := handlers.NewProductHandler(svc)
	api.GET("/brands/:id", brandHandler.Get)
	api.GET("/brands/:id/products", brandHandler.Products)
	api.GET("/products", productHandler.List)
	api.GET("/products/:id", productHandler.Get)

	authed := api.Group("")
	authed.Use(userAuthMiddleware(svc))
	authed.GET("/brands", brandHandler.List)
	authed.POST("/brands", brandHandler.Create)
	authed.PUT("/brands/:id", brandHandler.Update)
	authed.DELETE("/brands/:id", brandHandler.Delete)
	authed.POST("/products", productHandler.Create)
	authed.PUT("/products/:id", productHandler.Update)
	authed.DELETE("/products/:id", productHandler.Delete)

	if opts.Previewer != nil {
		storageHandler := handlers.NewStorageHandler(opts.Previewer)
		api.GET("/storage/buckets/:bucket/files/:id/preview", storageHandler.Preview)
		api.GET("/avatars/initials", storageHandler.Initials)
	}

	pageHandler := handlers.NewPageHandler(svc, opts.Cookies)
	r.GET("/", pageHandler.Home)
	r.GET("/login", pageHandler.Login)
	r.GET("/register", pageHandler.Static("register"))
	r.GET("/forgot-password", pageHandler.Static("forgot-password"))
	r.GET("/reset-password", pageHandler.ResetPassword)
	r.GET("/about", pageHandler.Static("about"))
	r.GET("/terms", pageHandler.Static("terms"))
	r.GET("/privacy", pageHandler.Static("privacy"))
	r.GET("/dashboard", pageHandler.Dashboard)
	r.GET("/dashboard/brands", pageHandler.DashboardBrands)
	r.GET("/brand/:slug", pageHandler.Brand)
	r.GET("/:username", pageHandler.Profile("profile-home"))
	r.GET("/:username/brands", pageHandler.Profile("profile-brands"))
	r.GET("/:username/profile", pageHandler.Profile("profile"))
	r.GET("/:username/settings", pageHandler.Profile("settings"))
}

// sessionMiddleware exposes the session cookie to handlers.
func sessionMiddleware(cookies handlers.CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		handlers.SetSession(c, cookies.ReadSession(c.Request))
		c.Next()
	}
}

// userAuthMiddleware resolves the session to a user with the backend.
func userAuthMiddleware(svc *storefront.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := handlers.Session(c)
		if session == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		user, errUser := svc.CurrentUser(c.Request.Context(), session)
		if errUser != nil {
			handlers.WriteError(c, errUser)
			c.Abort()
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		handlers.SetCurrentUser(c, *user, session)
		c.Next()
	}
}
