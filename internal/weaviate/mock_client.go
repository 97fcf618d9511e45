package weaviate

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is an in-memory implementation of ClientInterface for testing.
type MockClient struct {
	mu sync.Mutex
	// Objects stores objects by "ClassName/ObjectID" key
	Objects map[string]*Object
	// Classes maps class names to their property names
	Classes map[string][]string
	// Version is reported by GetServerVersion
	Version string
	// Err can be set to make methods return an error
	Err error
}

// NewMockClient creates a new MockClient for testing.
func NewMockClient() *MockClient {
	return &MockClient{
		Objects: make(map[string]*Object),
		Classes: make(map[string][]string),
		Version: "1.33.0",
	}
}

func objectKey(className, id string) string {
	return className + "/" + id
}

// copyObject detaches stored objects from callers, like a network round trip
func copyObject(obj *Object) *Object {
	out := *obj
	out.Properties = make(map[string]interface{}, len(obj.Properties))
	for k, v := range obj.Properties {
		out.Properties[k] = v
	}
	return &out
}

// GetServerVersion returns the configured version.
func (m *MockClient) GetServerVersion(ctx context.Context) (*ServerVersion, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return parseVersion(m.Version)
}

// EnsureClass registers a class in the mock schema.
func (m *MockClient) EnsureClass(ctx context.Context, className string, properties []string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Classes[className]; !ok {
		m.Classes[className] = properties
	}
	return nil
}

// GetAllObjects returns all objects of a specific class.
func (m *MockClient) GetAllObjects(ctx context.Context, className string, useCursor bool) ([]*Object, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Object
	for _, obj := range m.Objects {
		if obj.Class == className {
			result = append(result, copyObject(obj))
		}
	}
	return result, nil
}

// GetObject returns a specific object from the mock store.
func (m *MockClient) GetObject(ctx context.Context, className, objectID string) (*Object, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.Objects[objectKey(className, objectID)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", className, objectID, ErrObjectNotFound)
	}
	return copyObject(obj), nil
}

// CreateObject adds an object to the mock store.
func (m *MockClient) CreateObject(ctx context.Context, obj *Object) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Classes[obj.Class]; !ok {
		return fmt.Errorf("class %s not found", obj.Class)
	}
	key := objectKey(obj.Class, obj.ID)
	if _, exists := m.Objects[key]; exists {
		return fmt.Errorf("object %s already exists", key)
	}
	m.Objects[key] = copyObject(obj)
	return nil
}

// UpdateObject replaces an object in the mock store.
func (m *MockClient) UpdateObject(ctx context.Context, obj *Object) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := objectKey(obj.Class, obj.ID)
	if _, ok := m.Objects[key]; !ok {
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	m.Objects[key] = copyObject(obj)
	return nil
}

// DeleteObject removes an object from the mock store.
func (m *MockClient) DeleteObject(ctx context.Context, className, objectID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := objectKey(className, objectID)
	if _, ok := m.Objects[key]; !ok {
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	delete(m.Objects, key)
	return nil
}

// Verify MockClient implements ClientInterface
var _ ClientInterface = (*MockClient)(nil)
