// Package backend provides clients for the external code-modification
// collaborator. The core never inspects the backend's internals: it is a
// black box with nonzero latency and nonzero monetary cost per call.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lintmender/lintmender/internal/common"
	"github.com/lintmender/lintmender/internal/service"
)

// Config holds configuration for the fixing backend.
type Config struct {
	Provider    string
	CommandPath string
	Model       string
	MaxRetries  int
	RetryDelay  time.Duration
	RateLimit   int // requests per minute
}

// Backend wraps a provider client with rate limiting and retry, and
// implements service.FixBackend.
type Backend struct {
	client      service.FixBackend
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
	logger      *slog.Logger
}

// New creates a backend for the configured provider.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	var client service.FixBackend
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "", "command", "claude":
		client, err = newCommandClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported fix backend provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create fix backend: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 2
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		client:      client,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		retryOpts:   retryOpts,
		logger:      logger,
	}, nil
}

// FixBatch sends one batch to the backend, respecting the rate limit and
// retrying transient failures. Timeouts are not retried here; the
// scheduler owns timeout handling and scope reduction.
func (b *Backend) FixBatch(ctx context.Context, req service.FixRequest) (service.FixResult, error) {
	if err := b.rateLimiter.wait(ctx); err != nil {
		return service.FixResult{}, err
	}

	var result service.FixResult
	err := common.WithRetry(ctx, func() error {
		var callErr error
		result, callErr = b.client.FixBatch(ctx, req)
		if callErr == nil {
			return nil
		}
		return &common.RetryableError{
			Err:       callErr,
			Retryable: common.IsRetryable(callErr) && ctx.Err() == nil,
		}
	}, b.retryOpts)

	if err != nil {
		b.logger.Warn("fix backend call failed",
			"batch_id", req.BatchID,
			"files", len(req.Files),
			"error", err)
		return result, err
	}

	b.logger.Debug("fix backend call complete",
		"batch_id", req.BatchID,
		"resolved", len(result.ResolvedIDs),
		"cost", result.Cost)

	return result, nil
}

// Close releases any resources held by the backend.
func (b *Backend) Close() {
	b.rateLimiter.Close()
}
