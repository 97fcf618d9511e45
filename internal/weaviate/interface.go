package weaviate

import "context"

// ClientInterface defines the Weaviate operations the record store uses.
// This interface enables mocking for testing.
type ClientInterface interface {
	GetServerVersion(ctx context.Context) (*ServerVersion, error)
	EnsureClass(ctx context.Context, className string, properties []string) error

	GetAllObjects(ctx context.Context, className string, useCursor bool) ([]*Object, error)
	GetObject(ctx context.Context, className, objectID string) (*Object, error)
	CreateObject(ctx context.Context, obj *Object) error
	UpdateObject(ctx context.Context, obj *Object) error
	DeleteObject(ctx context.Context, className, objectID string) error
}

// Verify that *Client implements ClientInterface at compile time
var _ ClientInterface = (*Client)(nil)
