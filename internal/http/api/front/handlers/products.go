package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/Storefront/internal/storefront"
)

// ProductHandler manages product endpoints.
type ProductHandler struct {
	svc *storefront.Service
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(svc *storefront.Service) *ProductHandler {
	return &ProductHandler{svc: svc}
}

type createProductRequest struct {
	Name          string   `json:"name" form:"name"`
	Description   string   `json:"description" form:"description"`
	Price         float64  `json:"price" form:"price"`
	DiscountPrice *float64 `json:"discountPrice" form:"discountPrice"`
	Category      string   `json:"category" form:"category"`
	Brand         string   `json:"brand" form:"brand"`
	Stock         int      `json:"stock" form:"stock"`
}

type updateProductRequest struct {
	Name               *string  `json:"name" form:"name"`
	Description        *string  `json:"description" form:"description"`
	Price              *float64 `json:"price" form:"price"`
	DiscountPrice      *float64 `json:"discountPrice" form:"discountPrice"`
	ClearDiscountPrice bool     `json:"clearDiscountPrice" form:"clearDiscountPrice"`
	Category           *string  `json:"category" form:"category"`
	Stock              *int     `json:"stock" form:"stock"`
	IsActive           *bool    `json:"isActive" form:"isActive"`
}

// Create adds a product to a brand owned by the caller.
func (h *ProductHandler) Create(c *gin.Context) {
	var body createProductRequest
	if errBind := c.ShouldBind(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	name := strings.TrimSpace(body.Name)
	brandID := strings.TrimSpace(body.Brand)
	category := strings.TrimSpace(body.Category)
	switch {
	case name == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	case brandID == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing brand"})
		return
	case category == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing category"})
		return
	case body.Price < 0 || body.Stock < 0:
		c.JSON(http.StatusBadRequest, gin.H{"error": "price and stock must not be negative"})
		return
	}
	if !h.ownsBrand(c, brandID) {
		return
	}
	images, errImages := formUploads(c, "images")
	if errImages != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image upload"})
		return
	}

	product, errCreate := h.svc.CreateProduct(c.Request.Context(), Session(c), storefront.ProductInput{
		Name:          name,
		Description:   strings.TrimSpace(body.Description),
		Price:         body.Price,
		DiscountPrice: body.DiscountPrice,
		Images:        images,
		Category:      category,
		Brand:         brandID,
		Stock:         body.Stock,
	})
	if errCreate != nil {
		WriteError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

// List returns products filtered by slug, brand or category.
func (h *ProductHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		slug     = strings.TrimSpace(c.Query("slug"))
		brandID  = strings.TrimSpace(c.Query("brand"))
		category = strings.TrimSpace(c.Query("category"))
	)
	var (
		products []storefront.Product
		errList  error
	)
	switch {
	case slug != "":
		product, errFind := h.svc.ProductBySlug(ctx, Session(c), slug)
		if errFind != nil {
			WriteError(c, errFind)
			return
		}
		products = []storefront.Product{product}
	case brandID != "":
		products, errList = h.svc.ProductsByBrand(ctx, Session(c), brandID)
	case category != "":
		products, errList = h.svc.ProductsByCategory(ctx, Session(c), category)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter by slug, brand or category"})
		return
	}
	if errList != nil {
		WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// Get returns a product by ID.
func (h *ProductHandler) Get(c *gin.Context) {
	product, errFind := h.svc.ProductByID(c.Request.Context(), Session(c), c.Param("id"))
	if errFind != nil {
		WriteError(c, errFind)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

// Update changes a product whose brand the caller owns.
func (h *ProductHandler) Update(c *gin.Context) {
	if _, ok := h.ownedProduct(c); !ok {
		return
	}
	var body updateProductRequest
	if errBind := c.ShouldBind(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if (body.Price != nil && *body.Price < 0) || (body.Stock != nil && *body.Stock < 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price and stock must not be negative"})
		return
	}
	images, errImages := formUploads(c, "images")
	if errImages != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image upload"})
		return
	}

	product, errUpdate := h.svc.UpdateProduct(c.Request.Context(), Session(c), c.Param("id"), storefront.ProductUpdate{
		Name:               body.Name,
		Description:        body.Description,
		Price:              body.Price,
		DiscountPrice:      body.DiscountPrice,
		ClearDiscountPrice: body.ClearDiscountPrice,
		Images:             images,
		Category:           body.Category,
		Stock:              body.Stock,
		IsActive:           body.IsActive,
	})
	if errUpdate != nil {
		WriteError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

// Delete removes a product whose brand the caller owns.
func (h *ProductHandler) Delete(c *gin.Context) {
	if _, ok := h.ownedProduct(c); !ok {
		return
	}
	if errDelete := h.svc.DeleteProduct(c.Request.Context(), Session(c), c.Param("id")); errDelete != nil {
		WriteError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *ProductHandler) ownedProduct(c *gin.Context) (storefront.Product, bool) {
	product, errFind := h.svc.ProductByID(c.Request.Context(), Session(c), c.Param("id"))
	if errFind != nil {
		WriteError(c, errFind)
		return storefront.Product{}, false
	}
	if !h.ownsBrand(c, product.Brand) {
		return storefront.Product{}, false
	}
	return product, true
}

func (h *ProductHandler) ownsBrand(c *gin.Context, brandID string) bool {
	user, _ := CurrentUser(c)
	brand, errFind := h.svc.BrandByID(c.Request.Context(), Session(c), brandID)
	if errFind != nil {
		WriteError(c, errFind)
		return false
	}
	if brand.Owner != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "brand belongs to another user"})
		return false
	}
	return true
}
