package main

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	bridgeruntime "github.com/wippyai/bridge-runtime"
	"github.com/wippyai/bridge-runtime/config"
	"github.com/wippyai/bridge-runtime/errors"
)

var retryInterval = 50 * time.Millisecond

// callWithRetry invokes inv, retrying only runtime_invocation failures up
// to cfg.MaxRetries times within cfg.Timeout. Conversion, lookup and
// unsupported errors are returned immediately.
func callWithRetry(ctx context.Context, cfg config.Config, inv bridgeruntime.Invoker, args []any, notify backoff.Notify) (any, error) {
	if d := cfg.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	op := func() (any, error) {
		result, err := inv(ctx, args...)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, errors.ErrRuntimeInvocation) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryInterval

	opts := []backoff.RetryOption{
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(cfg.MaxRetries) + 1),
		backoff.WithMaxElapsedTime(cfg.Timeout()),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}
	return backoff.Retry(ctx, op, opts...)
}
