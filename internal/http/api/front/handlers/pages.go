package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/Storefront/internal/storefront"
)

// PageHandler serves the JSON payload behind each page.
type PageHandler struct {
	svc     *storefront.Service
	cookies CookieConfig
}

// NewPageHandler constructs a PageHandler.
func NewPageHandler(svc *storefront.Service, cookies CookieConfig) *PageHandler {
	return &PageHandler{svc: svc, cookies: cookies}
}

// Static returns a handler for a page without data.
func (h *PageHandler) Static(page string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": page})
	}
}

// Home greets visitors. Signed-in users are redirected by the gate before this runs.
func (h *PageHandler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "home"})
}

// Login carries the callback target through to the form.
func (h *PageHandler) Login(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "login", "callbackUrl": c.Query("callbackUrl")})
}

// ResetPassword passes the recovery link parameters to the form.
func (h *PageHandler) ResetPassword(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"page":   "reset-password",
		"userId": c.Query("userId"),
		"secret": c.Query("secret"),
		"expire": c.Query("expire"),
	})
}

// Dashboard lists the caller's brands.
func (h *PageHandler) Dashboard(c *gin.Context) {
	user, ok := h.identify(c)
	if !ok {
		return
	}
	brands, errList := h.svc.BrandsByOwner(c.Request.Context(), h.cookies.ReadSession(c.Request), user.ID)
	if errList != nil {
		WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": "dashboard", "user": user, "brands": brands})
}

// DashboardBrands lists the caller's brands for management.
func (h *PageHandler) DashboardBrands(c *gin.Context) {
	user, ok := h.identify(c)
	if !ok {
		return
	}
	brands, errList := h.svc.BrandsByOwner(c.Request.Context(), h.cookies.ReadSession(c.Request), user.ID)
	if errList != nil {
		WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": "dashboard-brands", "user": user, "brands": brands})
}

// Brand shows a storefront by slug with its products.
func (h *PageHandler) Brand(c *gin.Context) {
	user, ok := h.identify(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	session := h.cookies.ReadSession(c.Request)
	brand, errBrand := h.svc.BrandBySlug(ctx, session, c.Param("slug"))
	if errBrand != nil {
		WriteError(c, errBrand)
		return
	}
	products, errProducts := h.svc.ProductsByBrand(ctx, session, brand.ID)
	if errProducts != nil {
		WriteError(c, errProducts)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"page":     "brand",
		"brand":    brand,
		"products": products,
		"is_owner": brand.Owner == user.ID,
	})
}

// Profile serves /:username and its sub pages. Ownership comes from the
// session, never from the username cookie.
func (h *PageHandler) Profile(page string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := h.identify(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		session := h.cookies.ReadSession(c.Request)
		profile, errProfile := h.svc.UserByUsername(ctx, session, c.Param("username"))
		if errProfile != nil {
			WriteError(c, errProfile)
			return
		}
		isOwner := profile.ID == user.ID
		if page == "settings" && !isOwner {
			c.JSON(http.StatusForbidden, gin.H{"error": "settings belong to another user"})
			return
		}

		payload := gin.H{"page": page, "profile": profile, "is_owner": isOwner}
		if page == "profile-home" || page == "profile-brands" {
			brands, errBrands := h.svc.BrandsByOwner(ctx, session, profile.ID)
			if errBrands != nil {
				WriteError(c, errBrands)
				return
			}
			payload["brands"] = brands
		}
		if isOwner {
			payload["user"] = user
		}
		c.JSON(http.StatusOK, payload)
	}
}

// identify resolves the session for protected pages. A stale session clears
// the cookies and sends the visitor to the login page.
func (h *PageHandler) identify(c *gin.Context) (storefront.User, bool) {
	user, errUser := h.svc.CurrentUser(c.Request.Context(), h.cookies.ReadSession(c.Request))
	if errUser != nil {
		WriteError(c, errUser)
		return storefront.User{}, false
	}
	if user == nil {
		h.cookies.forget(c)
		target := "/login?" + url.Values{"callbackUrl": {c.Request.URL.Path}}.Encode()
		c.Redirect(http.StatusTemporaryRedirect, target)
		return storefront.User{}, false
	}
	h.cookies.syncUsername(c, user)
	return *user, true
}
