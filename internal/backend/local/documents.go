package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/db"
	"github.com/router-for-me/Storefront/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var attributeNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ListDocuments returns the documents of a collection matching every equality query.
// Reads are public; writes require a session.
func (b *Backend) ListDocuments(ctx context.Context, _ string, collectionID string, queries ...backend.Query) (backend.DocumentList, error) {
	if errThrottle := b.throttle("documents.list"); errThrottle != nil {
		return backend.DocumentList{}, errThrottle
	}
	tx := b.collection(ctx, collectionID)
	for _, query := range queries {
		if query.Method != backend.QueryEqual || len(query.Values) == 0 {
			return backend.DocumentList{}, newError(http.StatusBadRequest, backend.TypeGeneralArgumentInvalid,
				fmt.Sprintf("Invalid query method: %s", query.Method))
		}
		column, errColumn := b.queryColumn(query.Attribute)
		if errColumn != nil {
			return backend.DocumentList{}, errColumn
		}
		values := make([]string, 0, len(query.Values))
		for _, value := range query.Values {
			values = append(values, fmt.Sprint(value))
		}
		tx = tx.Where(column+" IN ?", values)
	}

	var rows []models.Document
	if errFind := tx.Order("id ASC").Find(&rows).Error; errFind != nil {
		return backend.DocumentList{}, internalError("list documents", errFind)
	}
	list := backend.DocumentList{Total: len(rows), Documents: make([]backend.Document, 0, len(rows))}
	for _, row := range rows {
		doc, errView := documentView(row)
		if errView != nil {
			return backend.DocumentList{}, internalError("decode document", errView)
		}
		list.Documents = append(list.Documents, doc)
	}
	return list, nil
}

// GetDocument fetches one document.
func (b *Backend) GetDocument(ctx context.Context, _ string, collectionID, documentID string) (backend.Document, error) {
	if errThrottle := b.throttle("documents.get"); errThrottle != nil {
		return backend.Document{}, errThrottle
	}
	row, errFind := b.findDocument(ctx, collectionID, documentID)
	if errFind != nil {
		return backend.Document{}, errFind
	}
	doc, errView := documentView(row)
	if errView != nil {
		return backend.Document{}, internalError("decode document", errView)
	}
	return doc, nil
}

// CreateDocument stores a document owned by the session's account.
func (b *Backend) CreateDocument(ctx context.Context, session, collectionID, documentID string, data map[string]any) (backend.Document, error) {
	if errThrottle := b.throttle("documents.create"); errThrottle != nil {
		return backend.Document{}, errThrottle
	}
	owner, errAuth := b.authenticate(ctx, session)
	if errAuth != nil {
		return backend.Document{}, errAuth
	}
	if isUniqueID(documentID) {
		documentID = backend.NewID()
	}
	raw, errMarshal := encodeAttributes(data)
	if errMarshal != nil {
		return backend.Document{}, errMarshal
	}

	row := models.Document{
		DatabaseID:   b.cfg.DatabaseID,
		CollectionID: collectionID,
		DocumentID:   documentID,
		OwnerID:      owner.AccountID,
		Data:         raw,
	}
	if errCreate := b.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			return backend.Document{}, newError(http.StatusConflict, "document_already_exists",
				"Document with the requested ID already exists.")
		}
		return backend.Document{}, internalError("create document", errCreate)
	}
	doc, errView := documentView(row)
	if errView != nil {
		return backend.Document{}, internalError("decode document", errView)
	}
	return doc, nil
}

// UpdateDocument merges data into a document owned by the session's account.
func (b *Backend) UpdateDocument(ctx context.Context, session, collectionID, documentID string, data map[string]any) (backend.Document, error) {
	if errThrottle := b.throttle("documents.update"); errThrottle != nil {
		return backend.Document{}, errThrottle
	}
	row, errOwned := b.ownedDocument(ctx, session, collectionID, documentID)
	if errOwned != nil {
		return backend.Document{}, errOwned
	}

	attributes := make(map[string]any)
	if len(row.Data) > 0 {
		if errUnmarshal := json.Unmarshal(row.Data, &attributes); errUnmarshal != nil {
			return backend.Document{}, internalError("decode document", errUnmarshal)
		}
	}
	for key, value := range data {
		attributes[key] = value
	}
	raw, errMarshal := encodeAttributes(attributes)
	if errMarshal != nil {
		return backend.Document{}, errMarshal
	}
	row.Data = raw
	row.UpdatedAt = b.now().UTC()
	if errSave := b.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", row.ID).
		Updates(map[string]any{"data": raw, "updated_at": row.UpdatedAt}).Error; errSave != nil {
		return backend.Document{}, internalError("update document", errSave)
	}
	doc, errView := documentView(row)
	if errView != nil {
		return backend.Document{}, internalError("decode document", errView)
	}
	return doc, nil
}

// DeleteDocument removes a document owned by the session's account.
func (b *Backend) DeleteDocument(ctx context.Context, session, collectionID, documentID string) error {
	if errThrottle := b.throttle("documents.delete"); errThrottle != nil {
		return errThrottle
	}
	row, errOwned := b.ownedDocument(ctx, session, collectionID, documentID)
	if errOwned != nil {
		return errOwned
	}
	if errDelete := b.db.WithContext(ctx).Delete(&models.Document{}, row.ID).Error; errDelete != nil {
		return internalError("delete document", errDelete)
	}
	return nil
}

func (b *Backend) collection(ctx context.Context, collectionID string) *gorm.DB {
	return b.db.WithContext(ctx).Model(&models.Document{}).
		Where("database_id = ? AND collection_id = ?", b.cfg.DatabaseID, collectionID)
}

func (b *Backend) findDocument(ctx context.Context, collectionID, documentID string) (models.Document, error) {
	var row models.Document
	if errFind := b.collection(ctx, collectionID).Where("document_id = ?", documentID).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Document{}, newError(http.StatusNotFound, backend.TypeDocumentNotFound, documentMissingMessage)
		}
		return models.Document{}, internalError("load document", errFind)
	}
	return row, nil
}

// ownedDocument loads a document and checks the session's account owns it.
func (b *Backend) ownedDocument(ctx context.Context, session, collectionID, documentID string) (models.Document, error) {
	caller, errAuth := b.authenticate(ctx, session)
	if errAuth != nil {
		return models.Document{}, errAuth
	}
	row, errFind := b.findDocument(ctx, collectionID, documentID)
	if errFind != nil {
		return models.Document{}, errFind
	}
	if row.OwnerID != caller.AccountID {
		return models.Document{}, newError(http.StatusUnauthorized, backend.TypeUserUnauthorized, unauthorizedMessage)
	}
	return row, nil
}

func (b *Backend) queryColumn(attribute string) (string, error) {
	switch attribute {
	case "$id":
		return "document_id", nil
	case "$ownerId":
		return "owner_id", nil
	}
	if !attributeNamePattern.MatchString(attribute) {
		return "", newError(http.StatusBadRequest, backend.TypeGeneralArgumentInvalid,
			fmt.Sprintf("Invalid query: Attribute not found in schema: %s", attribute))
	}
	return db.JSONExtractTextExpr(b.db, "data", attribute), nil
}

func encodeAttributes(data map[string]any) (datatypes.JSON, error) {
	if data == nil {
		data = map[string]any{}
	}
	for key := range data {
		if !attributeNamePattern.MatchString(key) {
			return nil, newError(http.StatusBadRequest, "document_invalid_structure",
				fmt.Sprintf("Invalid document structure: Unknown attribute: \"%s\"", key))
		}
	}
	raw, errMarshal := json.Marshal(data)
	if errMarshal != nil {
		return nil, newError(http.StatusBadRequest, "document_invalid_structure", "Invalid document structure: "+errMarshal.Error())
	}
	return datatypes.JSON(raw), nil
}

func documentView(row models.Document) (backend.Document, error) {
	attributes := make(map[string]any)
	if len(row.Data) > 0 {
		if errUnmarshal := json.Unmarshal(row.Data, &attributes); errUnmarshal != nil {
			return backend.Document{}, errUnmarshal
		}
	}
	return backend.Document{
		ID:           row.DocumentID,
		CollectionID: row.CollectionID,
		DatabaseID:   row.DatabaseID,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		Data:         attributes,
	}, nil
}
