// Package backend defines the contract the storefront consumes from its
// backend-as-a-service: accounts, sessions, documents, files and previews.
package backend

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Backend is the operation set the storefront consumes. A session argument is
// the secret returned by CreateEmailSession; an empty session is anonymous.
type Backend interface {
	CreateAccount(ctx context.Context, accountID, email, password, name string) (Account, error)
	CreateEmailSession(ctx context.Context, email, password string) (Session, error)
	GetAccount(ctx context.Context, session string) (Account, error)
	DeleteSession(ctx context.Context, session string) error
	CreateRecovery(ctx context.Context, email, redirectURL string) error
	UpdateRecovery(ctx context.Context, userID, secret, password string) error

	ListDocuments(ctx context.Context, session, collectionID string, queries ...Query) (DocumentList, error)
	GetDocument(ctx context.Context, session, collectionID, documentID string) (Document, error)
	CreateDocument(ctx context.Context, session, collectionID, documentID string, data map[string]any) (Document, error)
	UpdateDocument(ctx context.Context, session, collectionID, documentID string, data map[string]any) (Document, error)
	DeleteDocument(ctx context.Context, session, collectionID, documentID string) error

	CreateFile(ctx context.Context, session, bucketID, fileID string, upload Upload) (File, error)
	FilePreviewURL(bucketID, fileID string, opts PreviewOptions) string
	AvatarInitialsURL(name string) string
}

// NewID returns a fresh 32 character identifier accepted as a document, file or account ID.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
