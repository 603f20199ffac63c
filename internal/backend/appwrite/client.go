// Package appwrite talks to a hosted Appwrite project over its REST API.
package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/router-for-me/Storefront/internal/backend"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultEndpoint is the Appwrite Cloud API root.
	DefaultEndpoint = "https://cloud.appwrite.io/v1"

	defaultRequestTimeout = 30 * time.Second
	responseFormat        = "1.5.0"
	sessionCookiePrefix   = "a_session_"
)

// Config identifies the Appwrite project and database.
type Config struct {
	Endpoint   string
	ProjectID  string
	DatabaseID string
}

// Client implements backend.Backend against the Appwrite REST API.
type Client struct {
	endpoint   string
	projectID  string
	databaseID string
	http       *http.Client
}

var _ backend.Backend = (*Client)(nil)

// New constructs an Appwrite client. A nil httpClient uses a default with a timeout.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, errParse := url.ParseRequestURI(endpoint); errParse != nil {
		return nil, fmt.Errorf("appwrite: invalid endpoint: %w", errParse)
	}
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, fmt.Errorf("appwrite: project id is required")
	}
	databaseID := strings.TrimSpace(cfg.DatabaseID)
	if databaseID == "" {
		return nil, fmt.Errorf("appwrite: database id is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{endpoint: endpoint, projectID: projectID, databaseID: databaseID, http: httpClient}, nil
}

// CreateAccount registers a new account.
func (c *Client) CreateAccount(ctx context.Context, accountID, email, password, name string) (backend.Account, error) {
	var account backend.Account
	body := map[string]any{"userId": accountID, "email": email, "password": password, "name": name}
	_, err := c.do(ctx, http.MethodPost, "/account", "", body, &account)
	return account, err
}

// CreateEmailSession signs in with email and password.
func (c *Client) CreateEmailSession(ctx context.Context, email, password string) (backend.Session, error) {
	var session backend.Session
	body := map[string]any{"email": email, "password": password}
	resp, err := c.do(ctx, http.MethodPost, "/account/sessions/email", "", body, &session)
	if err != nil {
		return backend.Session{}, err
	}
	if session.Secret == "" {
		// Without an API key the secret only arrives as the project session cookie.
		session.Secret = sessionSecretFromCookies(resp.Cookies(), c.projectID)
	}
	if session.Secret == "" {
		return backend.Session{}, fmt.Errorf("appwrite: session secret missing from response")
	}
	return session, nil
}

// GetAccount returns the account owning session.
func (c *Client) GetAccount(ctx context.Context, session string) (backend.Account, error) {
	var account backend.Account
	_, err := c.do(ctx, http.MethodGet, "/account", session, nil, &account)
	return account, err
}

// DeleteSession revokes the current session.
func (c *Client) DeleteSession(ctx context.Context, session string) error {
	_, err := c.do(ctx, http.MethodDelete, "/account/sessions/current", session, nil, nil)
	return err
}

// CreateRecovery sends a password recovery email linking to redirectURL.
func (c *Client) CreateRecovery(ctx context.Context, email, redirectURL string) error {
	body := map[string]any{"email": email, "url": redirectURL}
	_, err := c.do(ctx, http.MethodPost, "/account/recovery", "", body, nil)
	return err
}

// UpdateRecovery completes a password recovery.
func (c *Client) UpdateRecovery(ctx context.Context, userID, secret, password string) error {
	body := map[string]any{"userId": userID, "secret": secret, "password": password}
	_, err := c.do(ctx, http.MethodPut, "/account/recovery", "", body, nil)
	return err
}

// ListDocuments lists documents matching every query.
func (c *Client) ListDocuments(ctx context.Context, session, collectionID string, queries ...backend.Query) (backend.DocumentList, error) {
	path := c.documentsPath(collectionID)
	if len(queries) > 0 {
		values := url.Values{}
		for _, query := range queries {
			raw, errMarshal := json.Marshal(query)
			if errMarshal != nil {
				return backend.DocumentList{}, fmt.Errorf("appwrite: encode query: %w", errMarshal)
			}
			values.Add("queries[]", string(raw))
		}
		path += "?" + values.Encode()
	}
	var list backend.DocumentList
	_, err := c.do(ctx, http.MethodGet, path, session, nil, &list)
	return list, err
}

// GetDocument fetches one document.
func (c *Client) GetDocument(ctx context.Context, session, collectionID, documentID string) (backend.Document, error) {
	var doc backend.Document
	_, err := c.do(ctx, http.MethodGet, c.documentPath(collectionID, documentID), session, nil, &doc)
	return doc, err
}

// CreateDocument stores a new document.
func (c *Client) CreateDocument(ctx context.Context, session, collectionID, documentID string, data map[string]any) (backend.Document, error) {
	var doc backend.Document
	body := map[string]any{"documentId": documentID, "data": data}
	_, err := c.do(ctx, http.MethodPost, c.documentsPath(collectionID), session, body, &doc)
	return doc, err
}

// UpdateDocument patches the given attributes.
func (c *Client) UpdateDocument(ctx context.Context, session, collectionID, documentID string, data map[string]any) (backend.Document, error) {
	var doc backend.Document
	body := map[string]any{"data": data}
	_, err := c.do(ctx, http.MethodPatch, c.documentPath(collectionID, documentID), session, body, &doc)
	return doc, err
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, session, collectionID, documentID string) error {
	_, err := c.do(ctx, http.MethodDelete, c.documentPath(collectionID, documentID), session, nil, nil)
	return err
}

// CreateFile uploads a file in a single multipart request.
func (c *Client) CreateFile(ctx context.Context, session, bucketID, fileID string, upload backend.Upload) (backend.File, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if errField := writer.WriteField("fileId", fileID); errField != nil {
		return backend.File{}, fmt.Errorf("appwrite: build upload: %w", errField)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Name))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, errPart := writer.CreatePart(header)
	if errPart != nil {
		return backend.File{}, fmt.Errorf("appwrite: build upload: %w", errPart)
	}
	if _, errWrite := part.Write(upload.Data); errWrite != nil {
		return backend.File{}, fmt.Errorf("appwrite: build upload: %w", errWrite)
	}
	if errClose := writer.Close(); errClose != nil {
		return backend.File{}, fmt.Errorf("appwrite: build upload: %w", errClose)
	}

	req, errReq := c.newRequest(ctx, http.MethodPost, "/storage/buckets/"+url.PathEscape(bucketID)+"/files", session, &buf)
	if errReq != nil {
		return backend.File{}, errReq
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	var file backend.File
	_, err := c.send(req, &file)
	return file, err
}

// FilePreviewURL returns the image transform URL for a stored file.
func (c *Client) FilePreviewURL(bucketID, fileID string, opts backend.PreviewOptions) string {
	values := url.Values{"project": {c.projectID}}
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
	return c.endpoint + "/storage/buckets/" + url.PathEscape(bucketID) + "/files/" + url.PathEscape(fileID) + "/preview?" + values.Encode()
}

// AvatarInitialsURL returns an initials avatar URL for name.
func (c *Client) AvatarInitialsURL(name string) string {
	values := url.Values{"name": {name}, "project": {c.projectID}}
	return c.endpoint + "/avatars/initials?" + values.Encode()
}

func (c *Client) documentsPath(collectionID string) string {
	return "/databases/" + url.PathEscape(c.databaseID) + "/collections/" + url.PathEscape(collectionID) + "/documents"
}

func (c *Client) documentPath(collectionID, documentID string) string {
	return c.documentsPath(collectionID) + "/" + url.PathEscape(documentID)
}

func (c *Client) do(ctx context.Context, method, path, session string, body any, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			return nil, fmt.Errorf("appwrite: encode request: %w", errMarshal)
		}
		reader = bytes.NewReader(raw)
	}
	req, errReq := c.newRequest(ctx, method, path, session, reader)
	if errReq != nil {
		return nil, errReq
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path, session string, body io.Reader) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, errReq := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if errReq != nil {
		return nil, fmt.Errorf("appwrite: build request: %w", errReq)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Appwrite-Project", c.projectID)
	req.Header.Set("X-Appwrite-Response-Format", responseFormat)
	if session != "" {
		req.Header.Set("X-Appwrite-Session", session)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) (*http.Response, error) {
	resp, errDo := c.http.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("appwrite: %s %s: %w", req.Method, req.URL.Path, errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("appwrite: close response body failed")
		}
	}()

	raw, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("appwrite: read response: %w", errRead)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, decodeError(resp.StatusCode, raw)
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if errUnmarshal := json.Unmarshal(raw, out); errUnmarshal != nil {
			return nil, fmt.Errorf("appwrite: decode response: %w", errUnmarshal)
		}
	}
	return resp, nil
}

func decodeError(status int, raw []byte) error {
	apiErr := &backend.Error{}
	if errUnmarshal := json.Unmarshal(raw, apiErr); errUnmarshal != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Code == 0 {
		apiErr.Code = status
	}
	return apiErr
}

func sessionSecretFromCookies(cookies []*http.Cookie, projectID string) string {
	name := sessionCookiePrefix + projectID
	for _, cookie := range cookies {
		if cookie.Name == name && cookie.Value != "" {
			return cookie.Value
		}
	}
	legacy := name + "_legacy"
	for _, cookie := range cookies {
		if cookie.Name == legacy && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}
