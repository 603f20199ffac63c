package storefront

import (
	"strconv"

	"github.com/router-for-me/Storefront/internal/backend"
)

// User is the profile document linked to an account.
type User struct {
	ID       string `json:"$id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
	Username string `json:"username,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// Brand is a storefront owned by a user.
type Brand struct {
	ID          string `json:"$id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
	BannerURL   string `json:"bannerUrl,omitempty"`
	Owner       string `json:"owner"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// Product is an item listed under a brand.
type Product struct {
	ID            string   `json:"$id"`
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	Description   string   `json:"description,omitempty"`
	Price         float64  `json:"price"`
	DiscountPrice *float64 `json:"discountPrice,omitempty"`
	ImageURLs     []string `json:"imageUrls"`
	Category      string   `json:"category"`
	Brand         string   `json:"brand"`
	Stock         int      `json:"stock"`
	IsActive      bool     `json:"isActive"`
	CreatedAt     string   `json:"createdAt"`
	UpdatedAt     string   `json:"updatedAt"`
}

func userFromDocument(doc backend.Document) User {
	return User{
		ID:       doc.ID,
		Name:     doc.String("name"),
		Email:    doc.String("email"),
		ImageURL: doc.String("imageUrl"),
		Username: doc.String("username"),
		Bio:      doc.String("bio"),
	}
}

func brandFromDocument(doc backend.Document) Brand {
	return Brand{
		ID:          doc.ID,
		Name:        doc.String("name"),
		Slug:        doc.String("slug"),
		Description: doc.String("description"),
		LogoURL:     doc.String("logoUrl"),
		BannerURL:   doc.String("bannerUrl"),
		Owner:       doc.String("owner"),
		CreatedAt:   doc.String("createdAt"),
		UpdatedAt:   doc.String("updatedAt"),
	}
}

func productFromDocument(doc backend.Document) Product {
	product := Product{
		ID:          doc.ID,
		Name:        doc.String("name"),
		Slug:        doc.String("slug"),
		Description: doc.String("description"),
		Price:       floatAttr(doc.Data["price"]),
		Category:    doc.String("category"),
		Brand:       doc.String("brand"),
		Stock:       int(floatAttr(doc.Data["stock"])),
		IsActive:    boolAttr(doc.Data["isActive"]),
		CreatedAt:   doc.String("createdAt"),
		UpdatedAt:   doc.String("updatedAt"),
		ImageURLs:   []string{},
	}
	if raw, ok := doc.Data["discountPrice"]; ok && raw != nil {
		discount := floatAttr(raw)
		product.DiscountPrice = &discount
	}
	if raw, ok := doc.Data["imageUrls"].([]any); ok {
		for _, item := range raw {
			if url, isString := item.(string); isString {
				product.ImageURLs = append(product.ImageURLs, url)
			}
		}
	}
	return product
}

func floatAttr(raw any) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func boolAttr(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}
