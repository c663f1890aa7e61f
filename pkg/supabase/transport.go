package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/edgeflare/supactl/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// transport is shared by every request a Client sends. It holds no
// per-request state; bind attaches the caller's context for one operation.
type transport struct {
	base           http.RoundTripper
	timeout        time.Duration
	retries        int
	initialBackoff time.Duration
	logger         *zap.Logger
}

// bind returns a RoundTripper that sends requests under ctx and records the
// last response status in *status.
func (t *transport) bind(ctx context.Context, status *int) http.RoundTripper {
	return &boundTransport{transport: t, ctx: ctx, status: status}
}

type boundTransport struct {
	*transport
	ctx    context.Context
	status *int
}

func (t *boundTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	if req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", uuid.NewString())
	}

	if t.retries <= 0 || (req.Method != http.MethodGet && req.Method != http.MethodHead) {
		return t.do(req)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.initialBackoff
	b.MaxElapsedTime = 0 // bounded by retries

	var resp *http.Response
	operation := func() error {
		if resp != nil {
			drain(resp)
			resp = nil
		}
		r, err := t.do(req.Clone(t.ctx))
		if err != nil {
			return err
		}
		resp = r
		if retryable(r.StatusCode) {
			return fmt.Errorf("retryable status %d", r.StatusCode)
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.retries)), t.ctx))
	if resp != nil {
		// the last answer, even a 5xx, carries the error body the caller decodes
		return resp, nil
	}
	return nil, err
}

func (t *boundTransport) do(req *http.Request) (*http.Response, error) {
	// a failed attempt must not report the status of an earlier one
	*t.status = 0

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(req.Context(), t.timeout)
	} else {
		ctx, cancel = context.WithCancel(req.Context())
	}
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	metrics.ObserveRequest(req.Method, status, elapsed)
	t.logger.Debug("supabase request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", status),
		zap.Duration("latency", elapsed),
		zap.String("request_id", req.Header.Get("X-Request-Id")),
	)

	if err != nil {
		cancel()
		return nil, err
	}
	*t.status = resp.StatusCode
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// cancelBody releases the request context once the body is consumed or
// closed. Error responses are read to EOF but never closed by postgrest-go.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err == io.EOF {
		b.cancel()
	}
	return n, err
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
