// Package fetcher downloads business websites with bounded retries.
package fetcher

import "context"

// PageFetcher fetches a page's text. ok is false when the page could not be
// fetched; that is a degraded outcome, not an error.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (body string, ok bool)
}
