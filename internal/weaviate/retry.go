package weaviate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
)

// RetryConfig configures retry behavior for transient errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns the retry settings used by the record store.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryClient wraps a ClientInterface and retries transient failures.
type RetryClient struct {
	inner  ClientInterface
	config *RetryConfig
}

var _ ClientInterface = (*RetryClient)(nil)

// NewRetryClient creates a RetryClient around inner.
func NewRetryClient(inner ClientInterface, cfg *RetryConfig) *RetryClient {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetryClient{inner: inner, config: cfg}
}

// isTransient reports whether err is worth retrying: 5xx and 429 responses
// and failures that never reached the server.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, ErrObjectNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var clientErr *fault.WeaviateClientError
	if errors.As(err, &clientErr) && clientErr.StatusCode > 0 {
		return clientErr.StatusCode >= 500 || clientErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// backoff computes the delay for the given attempt with jitter.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	base := float64(rc.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(rc.config.MaxBackoff) {
		base = float64(rc.config.MaxBackoff)
	}
	jitter := base * rc.config.JitterFraction * (rand.Float64()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rc *RetryClient) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= rc.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < rc.config.MaxRetries {
			if err := sleep(ctx, rc.backoff(attempt)); err != nil {
				return fmt.Errorf("%s: %w (retry cancelled)", operation, lastErr)
			}
		}
	}
	return fmt.Errorf("%s: %w (after %d retries)", operation, lastErr, rc.config.MaxRetries)
}

func (rc *RetryClient) GetServerVersion(ctx context.Context) (v *ServerVersion, err error) {
	err = rc.retry(ctx, "get server version", func() error {
		v, err = rc.inner.GetServerVersion(ctx)
		return err
	})
	return
}

func (rc *RetryClient) EnsureClass(ctx context.Context, className string, properties []string) error {
	return rc.retry(ctx, "ensure class", func() error {
		return rc.inner.EnsureClass(ctx, className, properties)
	})
}

func (rc *RetryClient) GetAllObjects(ctx context.Context, className string, useCursor bool) (objs []*Object, err error) {
	err = rc.retry(ctx, "list objects", func() error {
		objs, err = rc.inner.GetAllObjects(ctx, className, useCursor)
		return err
	})
	return
}

func (rc *RetryClient) GetObject(ctx context.Context, className, objectID string) (obj *Object, err error) {
	err = rc.retry(ctx, "get object", func() error {
		obj, err = rc.inner.GetObject(ctx, className, objectID)
		return err
	})
	return
}

func (rc *RetryClient) CreateObject(ctx context.Context, obj *Object) error {
	// Not retried: a lost response would turn into a duplicate ID error.
	return rc.inner.CreateObject(ctx, obj)
}

func (rc *RetryClient) UpdateObject(ctx context.Context, obj *Object) error {
	return rc.retry(ctx, "update object", func() error {
		return rc.inner.UpdateObject(ctx, obj)
	})
}

func (rc *RetryClient) DeleteObject(ctx context.Context, className, objectID string) error {
	return rc.retry(ctx, "delete object", func() error {
		return rc.inner.DeleteObject(ctx, className, objectID)
	})
}
