package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	"image/png"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/models"
	"golang.org/x/image/draw"
	"gorm.io/gorm"
)

const (
	maxPreviewDimension = 4000
	defaultJPEGQuality  = 90
)

// Preview is a rendered file preview.
type Preview struct {
	ContentType string
	Data        []byte
}

// CreateFile stores an upload owned by the session's account.
func (b *Backend) CreateFile(ctx context.Context, session, bucketID, fileID string, upload backend.Upload) (backend.File, error) {
	if errThrottle := b.throttle("storage.files.create"); errThrottle != nil {
		return backend.File{}, errThrottle
	}
	owner, errAuth := b.authenticate(ctx, session)
	if errAuth != nil {
		return backend.File{}, errAuth
	}
	size := int64(len(upload.Data))
	if size == 0 || size > b.cfg.MaxFileSize {
		return backend.File{}, newError(http.StatusBadRequest, backend.TypeStorageInvalidFileSize,
			fmt.Sprintf("File size not allowed: must be between 1 and %d bytes.", b.cfg.MaxFileSize))
	}
	if isUniqueID(fileID) {
		fileID = backend.NewID()
	}
	mimeType := strings.TrimSpace(upload.ContentType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(upload.Data)
	}

	row := models.File{
		BucketID: bucketID,
		FileID:   fileID,
		OwnerID:  owner.AccountID,
		Name:     upload.Name,
		MimeType: mimeType,
		Size:     size,
		Content:  upload.Data,
	}
	if errCreate := b.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			return backend.File{}, newError(http.StatusConflict, "storage_file_already_exists",
				"A storage file with the requested ID already exists.")
		}
		return backend.File{}, internalError("create file", errCreate)
	}
	return backend.File{
		ID:       row.FileID,
		BucketID: row.BucketID,
		Name:     row.Name,
		MimeType: row.MimeType,
		Size:     row.Size,
		Created:  row.CreatedAt,
	}, nil
}

// FilePreviewURL returns the URL served by the preview route.
func (b *Backend) FilePreviewURL(bucketID, fileID string, opts backend.PreviewOptions) string {
	values := previewQuery(opts)
	target := b.cfg.PublicURL + "/api/storage/buckets/" + url.PathEscape(bucketID) + "/files/" + url.PathEscape(fileID) + "/preview"
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return target
}

// AvatarInitialsURL returns the URL served by the initials route.
func (b *Backend) AvatarInitialsURL(name string) string {
	return b.cfg.PublicURL + "/api/avatars/initials?" + url.Values{"name": {name}}.Encode()
}

// Preview renders a stored image with the requested transform. Files that are
// not decodable images are returned unchanged.
func (b *Backend) Preview(ctx context.Context, bucketID, fileID string, opts backend.PreviewOptions) (Preview, error) {
	if errThrottle := b.throttle("storage.files.preview"); errThrottle != nil {
		return Preview{}, errThrottle
	}
	var row models.File
	if errFind := b.db.WithContext(ctx).Where("bucket_id = ? AND file_id = ?", bucketID, fileID).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Preview{}, newError(http.StatusNotFound, backend.TypeStorageFileNotFound,
				"The requested file could not be found.")
		}
		return Preview{}, internalError("load file", errFind)
	}

	src, format, errDecode := image.Decode(bytes.NewReader(row.Content))
	if errDecode != nil {
		return Preview{ContentType: row.MimeType, Data: row.Content}, nil
	}
	dst := Transform(src, opts)

	var buf bytes.Buffer
	if format == "png" {
		if errEncode := png.Encode(&buf, dst); errEncode != nil {
			return Preview{}, internalError("encode preview", errEncode)
		}
		return Preview{ContentType: "image/png", Data: buf.Bytes()}, nil
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}
	if errEncode := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); errEncode != nil {
		return Preview{}, internalError("encode preview", errEncode)
	}
	return Preview{ContentType: "image/jpeg", Data: buf.Bytes()}, nil
}

// Transform scales src to the requested box. With both dimensions set the image
// is cropped to fill the box around the gravity anchor; with one set the aspect
// ratio is kept.
func Transform(src image.Image, opts backend.PreviewOptions) image.Image {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	width, height := clampDimension(opts.Width), clampDimension(opts.Height)
	if srcW == 0 || srcH == 0 || (width == 0 && height == 0) {
		return src
	}
	switch {
	case width == 0:
		width = srcW * height / srcH
	case height == 0:
		height = srcH * width / srcW
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	crop := bounds
	// Cover: trim the axis that overflows the target aspect ratio.
	if srcW*height > srcH*width {
		cropW := srcH * width / height
		offset := anchorOffset(srcW-cropW, opts.Gravity, "left", "right")
		crop = image.Rect(bounds.Min.X+offset, bounds.Min.Y, bounds.Min.X+offset+cropW, bounds.Max.Y)
	} else if srcW*height < srcH*width {
		cropH := srcW * height / width
		offset := anchorOffset(srcH-cropH, opts.Gravity, "top", "bottom")
		crop = image.Rect(bounds.Min.X, bounds.Min.Y+offset, bounds.Max.X, bounds.Min.Y+offset+cropH)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Over, nil)
	return dst
}

func anchorOffset(slack int, gravity, start, end string) int {
	gravity = strings.ToLower(gravity)
	switch {
	case strings.Contains(gravity, start):
		return 0
	case strings.Contains(gravity, end):
		return slack
	default:
		return slack / 2
	}
}

func clampDimension(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxPreviewDimension {
		return maxPreviewDimension
	}
	return v
}

func previewQuery(opts backend.PreviewOptions) url.Values {
	values := url.Values{}
	if opts.Width > 0 {
		values.Set("width", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		values.Set("height", strconv.Itoa(opts.Height))
	}
	if opts.Gravity != "" {
		values.Set("gravity", opts.Gravity)
	}
	if opts.Quality > 0 {
		values.Set("quality", strconv.Itoa(opts.Quality))
	}
	return values
}

// ParsePreviewOptions reads preview options from a query string.
func ParsePreviewOptions(values url.Values) backend.PreviewOptions {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(values.Get(key))
		return n
	}
	return backend.PreviewOptions{
		Width:   atoi("width"),
		Height:  atoi("height"),
		Gravity: values.Get("gravity"),
		Quality: atoi("quality"),
	}
}

var avatarPalette = []string{"#4F46E5", "#0EA5E9", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6", "#EC4899", "#14B8A6"}

// Initials returns up to two uppercase initials for name.
func Initials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}

// InitialsSVG renders a square initials avatar.
func InitialsSVG(name string) []byte {
	initials := Initials(name)
	sum := 0
	for _, r := range name {
		sum += int(r)
	}
	color := avatarPalette[sum%len(avatarPalette)]
	return []byte(fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100" viewBox="0 0 100 100">`+
			`<rect width="100" height="100" fill="%s"/>`+
			`<text x="50" y="50" dy=".35em" text-anchor="middle" font-family="sans-serif" font-size="40" fill="#FFFFFF">%s</text>`+
			`</svg>`, color, html.EscapeString(initials)))
}
