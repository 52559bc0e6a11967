package client

import (
	"context"

	"github.com/firasghr/GoStealthClient/transport"
	"github.com/firasghr/GoStealthClient/worker"
)

// BatchRequest is one entry of a DoBatch call.
type BatchRequest struct {
	Method string
	URL    string
	Opts   *RequestOptions
}

// BatchResult pairs a request's response with its error; exactly one of the
// two is set.
type BatchResult struct {
	Response *transport.Response
	Err      error
}

// DoBatch executes independent requests with bounded concurrency and
// returns results in input order.  concurrency <= 0 defaults to 8.
func (c *Client) DoBatch(ctx context.Context, reqs []BatchRequest, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = 8
	}
	results := make([]BatchResult, len(reqs))

	pool := worker.NewPool(concurrency)
	pool.Start()
	for i, req := range reqs {
		i, req := i, req
		pool.Submit(func() {
			resp, err := c.Request(ctx, req.Method, req.URL, req.Opts)
			results[i] = BatchResult{Response: resp, Err: err}
		})
	}
	pool.Stop()
	return results
}
