// Package objectstore abstracts the bucket that holds shard assignments and
// workspace credentials. Listing is paginated the way object stores page their
// results: callers pass back the continuation token of the previous page until
// an empty token is returned.
package objectstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no object exists at a key.
var ErrNotFound = errors.New("object not found")

// Page is one page of a key listing.
type Page struct {
	Keys []string
	// NextToken continues the listing. Empty on the last page.
	NextToken string
}

// Lister pages through the keys under a prefix in lexicographic order.
type Lister interface {
	ListPage(ctx context.Context, prefix, token string) (*Page, error)
}

// Store is a flat key/value object store.
type Store interface {
	Lister

	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)

	// URI returns the address other services use to fetch key.
	URI(key string) string
}

// Walk calls fn for every key under prefix, consuming every page of the listing.
// A key repeated on a later page is reported once.
func Walk(ctx context.Context, l Lister, prefix string, fn func(key string) error) error {
	seen := make(map[string]struct{})
	token := ""

	for {
		page, err := l.ListPage(ctx, prefix, token)
		if err != nil {
			return fmt.Errorf("failed to list %q: %w", prefix, err)
		}

		for _, key := range page.Keys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if err := fn(key); err != nil {
				return err
			}
		}

		if page.NextToken == "" {
			return nil
		}
		if page.NextToken == token {
			return fmt.Errorf("listing %q did not advance past token %q", prefix, token)
		}
		token = page.NextToken
	}
}

// IsNotFound returns true if err reports a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
