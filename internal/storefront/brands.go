package storefront

import (
	"context"

	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/ratelimit"
)

// BrandInput creates a brand. Logo and Banner are optional uploads.
type BrandInput struct {
	Name        string
	Description string
	Logo        *backend.Upload
	Banner      *backend.Upload
	Owner       string
}

// BrandUpdate changes a brand. Empty strings and nil uploads keep the current value.
type BrandUpdate struct {
	Name        string
	Description string
	Logo        *backend.Upload
	Banner      *backend.Upload
}

// CreateBrand uploads the optional images and stores the brand.
func (s *Service) CreateBrand(ctx context.Context, session string, in BrandInput) (Brand, error) {
	logoURL, err := s.optionalImage(ctx, session, in.Logo)
	if err != nil {
		return Brand{}, err
	}
	bannerURL, err := s.optionalImage(ctx, session, in.Banner)
	if err != nil {
		return Brand{}, err
	}

	now := s.timestamp()
	data := map[string]any{
		"name":        in.Name,
		"slug":        Slugify(in.Name),
		"description": in.Description,
		"logoUrl":     logoURL,
		"bannerUrl":   bannerURL,
		"owner":       in.Owner,
		"createdAt":   now,
		"updatedAt":   now,
	}
	doc, err := ratelimit.Call(ctx, s.governor, OpCreateBrand, func(ctx context.Context) (backend.Document, error) {
		return s.backend.CreateDocument(ctx, session, s.cfg.BrandCollectionID, backend.NewID(), data)
	})
	if err != nil {
		return Brand{}, err
	}
	return brandFromDocument(doc), nil
}

// BrandByID fetches a brand.
func (s *Service) BrandByID(ctx context.Context, session, brandID string) (Brand, error) {
	doc, err := ratelimit.Call(ctx, s.governor, OpGetBrand, func(ctx context.Context) (backend.Document, error) {
		return s.backend.GetDocument(ctx, session, s.cfg.BrandCollectionID, brandID)
	})
	if err != nil {
		return Brand{}, err
	}
	return brandFromDocument(doc), nil
}

// BrandBySlug returns the first brand with slug, or ErrBrandNotFound.
func (s *Service) BrandBySlug(ctx context.Context, session, slug string) (Brand, error) {
	brands, err := s.listBrands(ctx, session, backend.Equal("slug", slug))
	if err != nil {
		return Brand{}, err
	}
	if len(brands) == 0 {
		return Brand{}, ErrBrandNotFound
	}
	return brands[0], nil
}

// BrandsByOwner lists the brands owned by a user.
func (s *Service) BrandsByOwner(ctx context.Context, session, ownerID string) ([]Brand, error) {
	return s.listBrands(ctx, session, backend.Equal("owner", ownerID))
}

// UpdateBrand applies a partial update. A rename re-derives the slug.
func (s *Service) UpdateBrand(ctx context.Context, session, brandID string, in BrandUpdate) (Brand, error) {
	existing, err := s.BrandByID(ctx, session, brandID)
	if err != nil {
		return Brand{}, err
	}

	logoURL := existing.LogoURL
	if in.Logo != nil {
		if logoURL, err = s.uploadImage(ctx, session, *in.Logo); err != nil {
			return Brand{}, err
		}
	}
	bannerURL := existing.BannerURL
	if in.Banner != nil {
		if bannerURL, err = s.uploadImage(ctx, session, *in.Banner); err != nil {
			return Brand{}, err
		}
	}

	name, slug := existing.Name, existing.Slug
	if in.Name != "" && in.Name != existing.Name {
		name, slug = in.Name, Slugify(in.Name)
	}
	description := existing.Description
	if in.Description != "" {
		description = in.Description
	}

	data := map[string]any{
		"name":        name,
		"slug":        slug,
		"description": description,
		"logoUrl":     logoURL,
		"bannerUrl":   bannerURL,
		"updatedAt":   s.timestamp(),
	}
	doc, err := ratelimit.Call(ctx, s.governor, OpUpdateBrand, func(ctx context.Context) (backend.Document, error) {
		return s.backend.UpdateDocument(ctx, session, s.cfg.BrandCollectionID, brandID, data)
	})
	if err != nil {
		return Brand{}, err
	}
	return brandFromDocument(doc), nil
}

// DeleteBrand removes a brand.
func (s *Service) DeleteBrand(ctx context.Context, session, brandID string) error {
	return s.governor.Do(ctx, OpDeleteBrand, func(ctx context.Context) error {
		return s.backend.DeleteDocument(ctx, session, s.cfg.BrandCollectionID, brandID)
	})
}

func (s *Service) listBrands(ctx context.Context, session string, queries ...backend.Query) ([]Brand, error) {
	list, err := ratelimit.Call(ctx, s.governor, OpListBrands, func(ctx context.Context) (backend.DocumentList, error) {
		return s.backend.ListDocuments(ctx, session, s.cfg.BrandCollectionID, queries...)
	})
	if err != nil {
		return nil, err
	}
	brands := make([]Brand, 0, len(list.Documents))
	for _, doc := range list.Documents {
		brands = append(brands, brandFromDocument(doc))
	}
	return brands, nil
}

func (s *Service) optionalImage(ctx context.Context, session string, upload *backend.Upload) (string, error) {
	if upload == nil {
		return "", nil
	}
	return s.uploadImage(ctx, session, *upload)
}
