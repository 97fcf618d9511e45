// Package weaviate provides a Weaviate-backed record store. Records and form
// definitions are kept as objects of two configurable classes.
package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

// ErrObjectNotFound is returned when an object does not exist
var ErrObjectNotFound = errors.New("object not found")

// Object is a Weaviate object with its properties decoded
type Object struct {
	ID                 string
	Class              string
	Properties         map[string]interface{}
	CreationTimeUnix   int64
	LastUpdateTimeUnix int64
}

// ServerVersion holds parsed Weaviate version info
type ServerVersion struct {
	Version string // e.g., "1.25.0"
	Major   int
	Minor   int
	Patch   int
}

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// parseVersion parses a version string like "1.25.0" into ServerVersion
func parseVersion(version string) (*ServerVersion, error) {
	matches := versionPattern.FindStringSubmatch(version)
	if len(matches) < 4 {
		return nil, fmt.Errorf("invalid version format: %s", version)
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])
	patch, _ := strconv.Atoi(matches[3])

	return &ServerVersion{
		Version: version,
		Major:   major,
		Minor:   minor,
		Patch:   patch,
	}, nil
}

// SupportsCursor reports whether the server supports WithAfter pagination
func (v *ServerVersion) SupportsCursor() bool {
	return v.Major > 1 || (v.Major == 1 && v.Minor >= 18)
}

// Client wraps the Weaviate client with the object operations the store needs
type Client struct {
	client *weaviate.Client
	url    string
}

// NewClient creates a new Weaviate client for url ("http://host:port")
func NewClient(url string) (*Client, error) {
	cfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}
	if rest, ok := strings.CutPrefix(url, "http://"); ok {
		cfg.Host = rest
	} else if rest, ok := strings.CutPrefix(url, "https://"); ok {
		cfg.Host = rest
		cfg.Scheme = "https"
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	return &Client{
		client: client,
		url:    url,
	}, nil
}

// Ping checks if Weaviate is reachable
func (c *Client) Ping(ctx context.Context) error {
	live, err := c.client.Misc().LiveChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to Weaviate: %w", err)
	}
	if !live {
		return fmt.Errorf("weaviate is not live")
	}
	return nil
}

// GetServerVersion fetches and parses the Weaviate server version
func (c *Client) GetServerVersion(ctx context.Context) (*ServerVersion, error) {
	meta, err := c.client.Misc().MetaGetter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get server metadata: %w", err)
	}
	return parseVersion(meta.Version)
}

// EnsureClass creates className with the given text properties unless it
// already exists. Objects are stored without vectors.
func (c *Client) EnsureClass(ctx context.Context, className string, properties []string) error {
	schema, err := c.client.Schema().Getter().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema: %w", err)
	}
	for _, class := range schema.Classes {
		if class.Class == className {
			return nil
		}
	}

	classObj := &weaviatemodels.Class{
		Class:      className,
		Vectorizer: "none",
	}
	for _, name := range properties {
		classObj.Properties = append(classObj.Properties, &weaviatemodels.Property{
			Name:     name,
			DataType: []string{"text"},
		})
	}
	if err := c.client.Schema().ClassCreator().WithClass(classObj).Do(ctx); err != nil {
		return fmt.Errorf("failed to create class %s: %w", className, err)
	}
	return nil
}

// GetAllObjects fetches all objects of a class, using cursor pagination when
// useCursor is set and offset pagination otherwise
func (c *Client) GetAllObjects(ctx context.Context, className string, useCursor bool) ([]*Object, error) {
	var all []*Object
	limit := 100
	offset := 0
	after := ""

	for {
		getter := c.client.Data().ObjectsGetter().
			WithClassName(className).
			WithLimit(limit)
		if useCursor {
			if after != "" {
				getter = getter.WithAfter(after)
			}
		} else {
			getter = getter.WithOffset(offset)
		}

		objs, err := getter.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch objects from %s: %w", className, err)
		}
		if len(objs) == 0 {
			break
		}

		for _, obj := range objs {
			if o := convertToObject(obj); o != nil {
				all = append(all, o)
			}
		}

		if len(objs) < limit {
			break
		}
		after = objs[len(objs)-1].ID.String()
		offset += limit
	}

	return all, nil
}

// GetObject fetches a single object by class and ID
func (c *Client) GetObject(ctx context.Context, className, objectID string) (*Object, error) {
	objs, err := c.client.Data().ObjectsGetter().
		WithClassName(className).
		WithID(objectID).
		Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s/%s: %w", className, objectID, ErrObjectNotFound)
		}
		return nil, err
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", className, objectID, ErrObjectNotFound)
	}
	return convertToObject(objs[0]), nil
}

// CreateObject creates a new object
func (c *Client) CreateObject(ctx context.Context, obj *Object) error {
	_, err := c.client.Data().Creator().
		WithClassName(obj.Class).
		WithID(obj.ID).
		WithProperties(obj.Properties).
		Do(ctx)
	return err
}

// UpdateObject replaces the properties of an existing object
func (c *Client) UpdateObject(ctx context.Context, obj *Object) error {
	err := c.client.Data().Updater().
		WithClassName(obj.Class).
		WithID(obj.ID).
		WithProperties(obj.Properties).
		Do(ctx)
	if isNotFound(err) {
		return fmt.Errorf("%s/%s: %w", obj.Class, obj.ID, ErrObjectNotFound)
	}
	return err
}

// DeleteObject deletes an object by class and ID
func (c *Client) DeleteObject(ctx context.Context, className, objectID string) error {
	err := c.client.Data().Deleter().
		WithClassName(className).
		WithID(objectID).
		Do(ctx)
	if isNotFound(err) {
		return fmt.Errorf("%s/%s: %w", className, objectID, ErrObjectNotFound)
	}
	return err
}

func isNotFound(err error) bool {
	var clientErr *fault.WeaviateClientError
	return errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound
}

// convertToObject converts a Weaviate API object to our internal model
func convertToObject(obj interface{}) *Object {
	// JSON round trip flattens the API types, including strfmt UUIDs
	data, err := json.Marshal(obj)
	if err != nil {
		return nil
	}

	var raw struct {
		ID                 string                 `json:"id"`
		Class              string                 `json:"class"`
		Properties         map[string]interface{} `json:"properties"`
		CreationTimeUnix   int64                  `json:"creationTimeUnix"`
		LastUpdateTimeUnix int64                  `json:"lastUpdateTimeUnix"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	return &Object{
		ID:                 raw.ID,
		Class:              raw.Class,
		Properties:         raw.Properties,
		CreationTimeUnix:   raw.CreationTimeUnix,
		LastUpdateTimeUnix: raw.LastUpdateTimeUnix,
	}
}
