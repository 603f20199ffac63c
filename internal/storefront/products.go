package storefront

import (
	"context"

	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/ratelimit"
)

// ProductInput creates a product under a brand.
type ProductInput struct {
	Name          string
	Description   string
	Price         float64
	DiscountPrice *float64
	Images        []backend.Upload
	Category      string
	Brand         string
	Stock         int
}

// ProductUpdate changes a product. Nil fields keep the current value; a
// non-empty Images replaces every existing image.
type ProductUpdate struct {
	Name               *string
	Description        *string
	Price              *float64
	DiscountPrice      *float64
	ClearDiscountPrice bool
	Images             []backend.Upload
	Category           *string
	Stock              *int
	IsActive           *bool
}

// CreateProduct uploads the images and stores an active product.
func (s *Service) CreateProduct(ctx context.Context, session string, in ProductInput) (Product, error) {
	imageURLs, err := s.uploadImages(ctx, session, in.Images)
	if err != nil {
		return Product{}, err
	}

	now := s.timestamp()
	data := map[string]any{
		"name":          in.Name,
		"slug":          Slugify(in.Name),
		"description":   in.Description,
		"price":         in.Price,
		"discountPrice": nil,
		"imageUrls":     imageURLs,
		"category":      in.Category,
		"brand":         in.Brand,
		"stock":         in.Stock,
		"isActive":      true,
		"createdAt":     now,
		"updatedAt":     now,
	}
	if in.DiscountPrice != nil && *in.DiscountPrice != 0 {
		data["discountPrice"] = *in.DiscountPrice
	}
	doc, err := ratelimit.Call(ctx, s.governor, OpCreateProduct, func(ctx context.Context) (backend.Document, error) {
		return s.backend.CreateDocument(ctx, session, s.cfg.ProductCollectionID, backend.NewID(), data)
	})
	if err != nil {
		return Product{}, err
	}
	return productFromDocument(doc), nil
}

// ProductByID fetches a product.
func (s *Service) ProductByID(ctx context.Context, session, productID string) (Product, error) {
	doc, err := ratelimit.Call(ctx, s.governor, OpGetProduct, func(ctx context.Context) (backend.Document, error) {
		return s.backend.GetDocument(ctx, session, s.cfg.ProductCollectionID, productID)
	})
	if err != nil {
		return Product{}, err
	}
	return productFromDocument(doc), nil
}

// ProductBySlug returns the first product with slug, or ErrProductNotFound.
func (s *Service) ProductBySlug(ctx context.Context, session, slug string) (Product, error) {
	products, err := s.listProducts(ctx, session, backend.Equal("slug", slug))
	if err != nil {
		return Product{}, err
	}
	if len(products) == 0 {
		return Product{}, ErrProductNotFound
	}
	return products[0], nil
}

// ProductsByBrand lists the products of a brand.
func (s *Service) ProductsByBrand(ctx context.Context, session, brandID string) ([]Product, error) {
	return s.listProducts(ctx, session, backend.Equal("brand", brandID))
}

// ProductsByCategory lists the products in a category.
func (s *Service) ProductsByCategory(ctx context.Context, session, category string) ([]Product, error) {
	return s.listProducts(ctx, session, backend.Equal("category", category))
}

// UpdateProduct applies a partial update. A rename re-derives the slug.
func (s *Service) UpdateProduct(ctx context.Context, session, productID string, in ProductUpdate) (Product, error) {
	existing, err := s.ProductByID(ctx, session, productID)
	if err != nil {
		return Product{}, err
	}

	imageURLs := existing.ImageURLs
	if len(in.Images) > 0 {
		if imageURLs, err = s.uploadImages(ctx, session, in.Images); err != nil {
			return Product{}, err
		}
	}

	next := existing
	if in.Name != nil && *in.Name != "" && *in.Name != existing.Name {
		next.Name, next.Slug = *in.Name, Slugify(*in.Name)
	}
	if in.Description != nil {
		next.Description = *in.Description
	}
	if in.Price != nil {
		next.Price = *in.Price
	}
	switch {
	case in.ClearDiscountPrice:
		next.DiscountPrice = nil
	case in.DiscountPrice != nil:
		next.DiscountPrice = in.DiscountPrice
	}
	if in.Category != nil && *in.Category != "" {
		next.Category = *in.Category
	}
	if in.Stock != nil {
		next.Stock = *in.Stock
	}
	if in.IsActive != nil {
		next.IsActive = *in.IsActive
	}

	data := map[string]any{
		"name":          next.Name,
		"slug":          next.Slug,
		"description":   next.Description,
		"price":         next.Price,
		"discountPrice": nil,
		"imageUrls":     imageURLs,
		"category":      next.Category,
		"stock":         next.Stock,
		"isActive":      next.IsActive,
		"updatedAt":     s.timestamp(),
	}
	if next.DiscountPrice != nil {
		data["discountPrice"] = *next.DiscountPrice
	}
	doc, err := ratelimit.Call(ctx, s.governor, OpUpdateProduct, func(ctx context.Context) (backend.Document, error) {
		return s.backend.UpdateDocument(ctx, session, s.cfg.ProductCollectionID, productID, data)
	})
	if err != nil {
		return Product{}, err
	}
	return productFromDocument(doc), nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, session, productID string) error {
	return s.governor.Do(ctx, OpDeleteProduct, func(ctx context.Context) error {
		return s.backend.DeleteDocument(ctx, session, s.cfg.ProductCollectionID, productID)
	})
}

func (s *Service) listProducts(ctx context.Context, session string, queries ...backend.Query) ([]Product, error) {
	list, err := ratelimit.Call(ctx, s.governor, OpListProducts, func(ctx context.Context) (backend.DocumentList, error) {
		return s.backend.ListDocuments(ctx, session, s.cfg.ProductCollectionID, queries...)
	})
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(list.Documents))
	for _, doc := range list.Documents {
		products = append(products, productFromDocument(doc))
	}
	return products, nil
}

func (s *Service) uploadImages(ctx context.Context, session string, uploads []backend.Upload) ([]string, error) {
	urls := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		url, err := s.uploadImage(ctx, session, upload)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}
