package github

import (
	"context"
	"fmt"
	"iter"

	"github.com/shurcooL/githubv4"
)

// PageSize is the number of items requested per GraphQL page. It is kept
// small so nested collaborator queries stay under GitHub's node and timeout limits.
const PageSize = 50

// Page is one page of a cursor-paginated GraphQL connection
type Page[T any] struct {
	Items       []T
	HasNextPage bool
	EndCursor   string
}

// PageFunc fetches the page starting after cursor. cursor is nil for the first page.
type PageFunc[T any] func(ctx context.Context, cursor *githubv4.String) (Page[T], error)

// Paginate walks a connection page by page and yields its items in order.
//
// The cursor is private to the returned sequence, so two sequences never share
// pagination state. Iteration stops after the page reporting no successor, on
// the first error (yielded once with a zero item), or when the consumer stops.
// Ranging over the sequence twice starts again from the first page.
func Paginate[T any](ctx context.Context, resource string, fetch PageFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		var cursor *githubv4.String

		for page := 1; ; page++ {
			result, err := fetch(ctx, cursor)
			if err != nil {
				yield(zero, fmt.Errorf("%s page %d: %w", resource, page, err))
				return
			}

			for _, item := range result.Items {
				if !yield(item, nil) {
					return
				}
			}

			if !result.HasNextPage {
				return
			}

			if result.EndCursor == "" || (cursor != nil && string(*cursor) == result.EndCursor) {
				yield(zero, fmt.Errorf("%s page %d: %w", resource, page, ErrCursorStalled))
				return
			}
			cursor = newString(githubv4.String(result.EndCursor))
		}
	}
}

// Collect drains a sequence into a slice, stopping at the first error
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// newString returns a pointer to a copy of s so the cursor outlives the query struct it came from.
func newString(s githubv4.String) *githubv4.String {
	ptr := new(githubv4.String)
	*ptr = s
	return ptr
}
