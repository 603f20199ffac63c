package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/Storefront/internal/storefront"
)

// BrandHandler manages brand endpoints.
type BrandHandler struct {
	svc *storefront.Service
}

// NewBrandHandler constructs a BrandHandler.
func NewBrandHandler(svc *storefront.Service) *BrandHandler {
	return &BrandHandler{svc: svc}
}

// brandRequest binds JSON bodies and multipart forms alike.
type brandRequest struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
}

// Create creates a brand owned by the signed-in user.
func (h *BrandHandler) Create(c *gin.Context) {
	user, _ := CurrentUser(c)
	var body brandRequest
	if errBind := c.ShouldBind(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	logo, errLogo := formUpload(c, "logo")
	if errLogo != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid logo upload"})
		return
	}
	banner, errBanner := formUpload(c, "banner")
	if errBanner != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid banner upload"})
		return
	}

	brand, errCreate := h.svc.CreateBrand(c.Request.Context(), Session(c), storefront.BrandInput{
		Name:        name,
		Description: strings.TrimSpace(body.Description),
		Logo:        logo,
		Banner:      banner,
		Owner:       user.ID,
	})
	if errCreate != nil {
		WriteError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"brand": brand})
}

// List returns brands by slug or owner. Without filters it lists the caller's brands.
func (h *BrandHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	if slug := strings.TrimSpace(c.Query("slug")); slug != "" {
		brand, errFind := h.svc.BrandBySlug(ctx, Session(c), slug)
		if errFind != nil {
			WriteError(c, errFind)
			return
		}
		c.JSON(http.StatusOK, gin.H{"brands": []storefront.Brand{brand}})
		return
	}

	owner := strings.TrimSpace(c.Query("owner"))
	if owner == "" {
		user, _ := CurrentUser(c)
		owner = user.ID
	}
	brands, errList := h.svc.BrandsByOwner(ctx, Session(c), owner)
	if errList != nil {
		WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brands": brands})
}

// Get returns a brand by ID.
func (h *BrandHandler) Get(c *gin.Context) {
	brand, errFind := h.svc.BrandByID(c.Request.Context(), Session(c), c.Param("id"))
	if errFind != nil {
		WriteError(c, errFind)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brand": brand})
}

// Update changes a brand owned by the caller.
func (h *BrandHandler) Update(c *gin.Context) {
	if _, ok := h.ownedBrand(c); !ok {
		return
	}
	var body brandRequest
	if errBind := c.ShouldBind(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	logo, errLogo := formUpload(c, "logo")
	if errLogo != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid logo upload"})
		return
	}
	banner, errBanner := formUpload(c, "banner")
	if errBanner != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid banner upload"})
		return
	}

	brand, errUpdate := h.svc.UpdateBrand(c.Request.Context(), Session(c), c.Param("id"), storefront.BrandUpdate{
		Name:        strings.TrimSpace(body.Name),
		Description: strings.TrimSpace(body.Description),
		Logo:        logo,
		Banner:      banner,
	})
	if errUpdate != nil {
		WriteError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brand": brand})
}

// Delete removes a brand owned by the caller.
func (h *BrandHandler) Delete(c *gin.Context) {
	if _, ok := h.ownedBrand(c); !ok {
		return
	}
	if errDelete := h.svc.DeleteBrand(c.Request.Context(), Session(c), c.Param("id")); errDelete != nil {
		WriteError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Products lists the products of a brand.
func (h *BrandHandler) Products(c *gin.Context) {
	products, errList := h.svc.ProductsByBrand(c.Request.Context(), Session(c), c.Param("id"))
	if errList != nil {
		WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// ownedBrand loads the brand in the path and rejects callers who do not own it.
func (h *BrandHandler) ownedBrand(c *gin.Context) (storefront.Brand, bool) {
	user, _ := CurrentUser(c)
	brand, errFind := h.svc.BrandByID(c.Request.Context(), Session(c), c.Param("id"))
	if errFind != nil {
		WriteError(c, errFind)
		return storefront.Brand{}, false
	}
	if brand.Owner != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "brand belongs to another user"})
		return storefront.Brand{}, false
	}
	return brand, true
}
