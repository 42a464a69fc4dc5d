package models

import "context"

// Request describes a single fetch the host performs on the resolver's behalf
type Request struct {
	Method  string
	URL     string
	Headers Headers
	Body    string
}

// Fetcher is the HTTP capability supplied by the host application.
// Implementations must be safe for concurrent use and honour ctx cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (string, error)
}

// FetcherFunc adapts a plain function to Fetcher
type FetcherFunc func(ctx context.Context, req Request) (string, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
