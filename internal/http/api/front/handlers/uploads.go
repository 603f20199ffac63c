package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/Storefront/internal/backend"
)

// formUpload reads an optional single file field.
func formUpload(c *gin.Context, field string) (*backend.Upload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	header, errFile := c.FormFile(field)
	if errFile != nil {
		if errors.Is(errFile, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", field, errFile)
	}
	upload, errRead := readUpload(header)
	if errRead != nil {
		return nil, fmt.Errorf("read %s: %w", field, errRead)
	}
	return &upload, nil
}

// formUploads reads every file of a repeated field.
func formUploads(c *gin.Context, field string) ([]backend.Upload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	form, errForm := c.MultipartForm()
	if errForm != nil {
		return nil, fmt.Errorf("read multipart form: %w", errForm)
	}
	uploads := make([]backend.Upload, 0, len(form.File[field]))
	for _, header := range form.File[field] {
		if header == nil {
			continue
		}
		upload, errRead := readUpload(header)
		if errRead != nil {
			return nil, fmt.Errorf("read %s: %w", field, errRead)
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func readUpload(header *multipart.FileHeader) (backend.Upload, error) {
	reader, errOpen := header.Open()
	if errOpen != nil {
		return backend.Upload{}, errOpen
	}
	defer func() { _ = reader.Close() }()
	data, errRead := io.ReadAll(reader)
	if errRead != nil {
		return backend.Upload{}, errRead
	}
	return backend.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}
