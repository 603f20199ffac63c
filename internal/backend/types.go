package backend

import (
	"encoding/json"
	"strings"
	"time"
)

// Account is a backend login identity.
type Account struct {
	ID        string    `json:"$id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"$createdAt"`
}

// Session is an active login. Secret authenticates later calls.
type Session struct {
	ID     string    `json:"$id"`
	UserID string    `json:"userId"`
	Secret string    `json:"secret"`
	Expire time.Time `json:"expire"`
}

// Document is a record in a collection. Data holds the attributes; system
// fields are kept apart and prefixed with "$" on the wire.
type Document struct {
	ID           string
	CollectionID string
	DatabaseID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Data         map[string]any
}

// MarshalJSON flattens system fields and attributes into one object.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Data)+5)
	for key, value := range d.Data {
		out[key] = value
	}
	out["$id"] = d.ID
	out["$collectionId"] = d.CollectionID
	out["$databaseId"] = d.DatabaseID
	out["$createdAt"] = d.CreatedAt
	out["$updatedAt"] = d.UpdatedAt
	return json.Marshal(out)
}

// UnmarshalJSON splits "$" system fields from attributes.
func (d *Document) UnmarshalJSON(raw []byte) error {
	var fields map[string]any
	if errUnmarshal := json.Unmarshal(raw, &fields); errUnmarshal != nil {
		return errUnmarshal
	}
	*d = Document{Data: make(map[string]any, len(fields))}
	for key, value := range fields {
		if !strings.HasPrefix(key, "$") {
			d.Data[key] = value
			continue
		}
		text, _ := value.(string)
		switch key {
		case "$id":
			d.ID = text
		case "$collectionId":
			d.CollectionID = text
		case "$databaseId":
			d.DatabaseID = text
		case "$createdAt":
			d.CreatedAt, _ = time.Parse(time.RFC3339Nano, text)
		case "$updatedAt":
			d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, text)
		}
	}
	return nil
}

// String returns a string attribute, or "".
func (d Document) String(key string) string {
	value, _ := d.Data[key].(string)
	return value
}

// DocumentList is a page of documents.
type DocumentList struct {
	Total     int        `json:"total"`
	Documents []Document `json:"documents"`
}

// Query filters a document listing.
type Query struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute"`
	Values    []any  `json:"values"`
}

// QueryEqual matches documents whose attribute equals value.
const QueryEqual = "equal"

// Equal builds an equality query.
func Equal(attribute string, value any) Query {
	return Query{Method: QueryEqual, Attribute: attribute, Values: []any{value}}
}

// File is an uploaded blob.
type File struct {
	ID       string    `json:"$id"`
	BucketID string    `json:"bucketId"`
	Name     string    `json:"name"`
	MimeType string    `json:"mimeType"`
	Size     int64     `json:"sizeOriginal"`
	Created  time.Time `json:"$createdAt"`
}

// Upload is the content of a file to store.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// PreviewOptions controls the image transform applied to a file preview.
type PreviewOptions struct {
	Width   int
	Height  int
	Gravity string
	Quality int
}

// DefaultPreview is the transform used for brand and product images.
var DefaultPreview = PreviewOptions{Width: 2000, Height: 2000, Gravity: "center", Quality: 100}
