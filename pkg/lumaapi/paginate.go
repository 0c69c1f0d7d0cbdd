package lumaapi

import "context"

// PageFunc fetches one page starting at cursor ("" for the first page).
type PageFunc[T any] func(ctx context.Context, cursor string, limit int) (*Page[T], error)

// CollectAll follows next_cursor until has_more is false and returns every
// entry in arrival order. It fails instead of looping when the API reports
// has_more without a cursor, repeats a cursor, or exceeds maxPages.
func CollectAll[T any](ctx context.Context, maxPages int, fetch PageFunc[T]) ([]T, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	var (
		all    []T
		cursor string
	)
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, invalidResponse("paginate", "pagination exceeded %d pages without has_more=false", maxPages)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := fetch(ctx, cursor, MaxPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Entries...)
		if !p.HasMore {
			return all, nil
		}
		if p.NextCursor == "" {
			return nil, invalidResponse("paginate", "has_more is true but next_cursor is missing")
		}
		if p.NextCursor == cursor {
			return nil, invalidResponse("paginate", "next_cursor %q repeated", cursor)
		}
		cursor = p.NextCursor
	}
}
