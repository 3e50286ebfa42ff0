package chord

import (
	"context"
	"expvar"
	"time"

	"github.com/avast/retry-go/v4"
)

var lookupRetries = expvar.NewInt("chord.lookupRetries")

type retryableWrapper struct {
	VNode
	retryInterval time.Duration
	retryAttempts uint
}

// WrapRetry wraps a given VNode to provide automatic retry on retryable lookup errors,
// such as a node that currently has no alive candidate in its table
func WrapRetry(vnode VNode, interval time.Duration, maxAttempts uint) VNode {
	return &retryableWrapper{
		VNode:         vnode,
		retryInterval: interval,
		retryAttempts: maxAttempts,
	}
}

func (n *retryableWrapper) retryOptions(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(n.retryAttempts),
		retry.Delay(n.retryInterval),
		retry.OnRetry(func(n uint, err error) {
			lookupRetries.Add(1)
		}),
		retry.RetryIf(ErrorIsRetryable),
		retry.LastErrorOnly(true),
	}
}

func (n *retryableWrapper) FindSuccessor(ctx context.Context, key uint64) (Lookup, error) {
	return retry.DoWithData(func() (Lookup, error) {
		return n.VNode.FindSuccessor(ctx, key)
	}, n.retryOptions(ctx)...)
}

func (n *retryableWrapper) GetPredecessor(ctx context.Context) (Peer, error) {
	return retry.DoWithData(func() (Peer, error) {
		return n.VNode.GetPredecessor(ctx)
	}, n.retryOptions(ctx)...)
}
