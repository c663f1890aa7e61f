package supabase

import (
	"context"
	"time"

	storage "github.com/supabase-community/storage-go"
	supabasego "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// BucketStatus is the outcome of checking one storage bucket.
type BucketStatus struct {
	Name   string
	Exists bool
	Public bool
	// Files is the number of objects visible at the bucket root, up to the
	// listing limit.
	Files int
	// Err is set when the buckets could not be listed.
	Err error
	// ListErr is set when the bucket exists but its objects could not be listed.
	ListErr error
}

// CheckBucket reports whether a storage bucket exists and its objects can be
// listed with the client's key.
//
// The storage client takes neither a context nor a transport, so its requests
// carry no request id and are not counted in the request metrics. Each call is
// abandoned once ctx is done or the client timeout elapses.
func (c *Client) CheckBucket(ctx context.Context, name string) BucketStatus {
	status := BucketStatus{Name: name}

	sb, err := supabasego.NewClient(c.url, c.key, &supabasego.ClientOptions{Schema: c.schema})
	if err != nil {
		status.Err = err
		return status
	}

	buckets, err := bounded(ctx, c.transport.timeout, sb.Storage.ListBuckets)
	if err != nil {
		c.logger.Warn("could not list buckets", zap.Error(err))
		status.Err = err
		return status
	}

	for _, b := range buckets {
		if b.Name == name || b.Id == name {
			status.Exists = true
			status.Public = b.Public
			break
		}
	}
	if !status.Exists {
		return status
	}

	files, err := bounded(ctx, c.transport.timeout, func() ([]storage.FileObject, error) {
		return sb.Storage.ListFiles(name, "", storage.FileSearchOptions{Limit: 100})
	})
	if err != nil {
		c.logger.Warn("could not list files", zap.String("bucket", name), zap.Error(err))
		status.ListErr = err
		return status
	}
	status.Files = len(files)
	return status
}

// bounded runs call and returns its result, or the context error if ctx is
// done or timeout elapses first. An abandoned call finishes in the background.
func bounded[T any](ctx context.Context, timeout time.Duration, call func() (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
