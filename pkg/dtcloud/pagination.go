package dtcloud

import (
	"context"
	"fmt"
)

// PageFetcher fetches the page identified by pageToken. An empty token
// requests the first page.
type PageFetcher[T any] func(ctx context.Context, pageToken string) (*PagedResult[T], error)

// PaginationOptions controls collection of paginated results.
type PaginationOptions struct {
	// PageSize is passed to the fetcher's request, zero leaves it to the server.
	PageSize int
	// MaxPages bounds how many pages are requested before giving up. Zero
	// uses DefaultMaxPages.
	MaxPages int
}

// DefaultMaxPages is the page limit used when PaginationOptions.MaxPages is zero.
const DefaultMaxPages = 10000

// DefaultPaginationOptions returns default pagination options.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{
		PageSize: 0,
		MaxPages: DefaultMaxPages,
	}
}

func (o *PaginationOptions) maxPages() int {
	if o == nil || o.MaxPages <= 0 {
		return DefaultMaxPages
	}

	return o.MaxPages
}

// pageGuard detects a server that keeps returning the same continuation
// token or never stops paging.
type pageGuard struct {
	seen     map[string]struct{}
	pages    int
	maxPages int
}

func newPageGuard(opts *PaginationOptions) *pageGuard {
	return &pageGuard{seen: make(map[string]struct{}), maxPages: opts.maxPages()}
}

func (g *pageGuard) next(token string) error {
	g.pages++
	if g.pages > g.maxPages {
		return NewError(KindUnknownError, fmt.Sprintf("more than %d pages", g.maxPages), ErrPaginationLoop)
	}

	if token == "" {
		return nil
	}

	if _, ok := g.seen[token]; ok {
		return NewError(KindUnknownError, "page token "+token+" repeated", ErrPaginationLoop)
	}

	g.seen[token] = struct{}{}

	return nil
}

// CollectAll follows continuation tokens until the last page and returns every
// item in page order. Any error aborts the whole collection.
func CollectAll[T any](ctx context.Context, fetch PageFetcher[T], opts *PaginationOptions) ([]T, error) {
	guard := newPageGuard(opts)

	var (
		all   []T
		token string
	)

	for {
		err := guard.next(token)
		if err != nil {
			return nil, err
		}

		page, err := fetch(ctx, token)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Items...)

		if !page.HasNext() {
			return all, nil
		}

		token = page.NextPageToken
	}
}

// PaginationIterator provides lazy iteration over paginated results.
type PaginationIterator[T any] struct {
	ctx     context.Context //nolint:containedctx // iterator is bound to one listing
	fetch   PageFetcher[T]
	guard   *pageGuard
	current *PagedResult[T]
	index   int
	token   string
	started bool
	err     error
}

// NewPaginationIterator creates a new pagination iterator.
func NewPaginationIterator[T any](ctx context.Context, fetch PageFetcher[T], opts *PaginationOptions) *PaginationIterator[T] {
	return &PaginationIterator[T]{
		ctx:   ctx,
		fetch: fetch,
		guard: newPageGuard(opts),
	}
}

// HasNext reports whether another item is available, fetching the next page
// if needed. Fetch errors are reported by Next.
func (it *PaginationIterator[T]) HasNext() bool {
	if it.err != nil {
		return true
	}

	for {
		if it.current != nil && it.index < len(it.current.Items) {
			return true
		}

		if it.started && !it.current.HasNext() {
			return false
		}

		it.err = it.fetchPage()
		if it.err != nil {
			return true
		}
	}
}

// Next returns the next item. Once the listing is exhausted it returns an
// UnknownError wrapping ErrIteratorExhausted.
func (it *PaginationIterator[T]) Next() (T, error) {
	var zero T

	if !it.HasNext() {
		return zero, NewError(KindUnknownError, "pagination iterator exhausted", ErrIteratorExhausted)
	}

	if it.err != nil {
		err := it.err
		it.err = nil
		it.current = nil
		it.started = true

		return zero, err
	}

	item := it.current.Items[it.index]
	it.index++

	return item, nil
}

// All collects all remaining items.
func (it *PaginationIterator[T]) All() ([]T, error) {
	var all []T

	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			return nil, err
		}

		all = append(all, item)
	}

	return all, nil
}

// ForEach calls fn for every remaining item, stopping at the first error.
func (it *PaginationIterator[T]) ForEach(fn func(T) error) error {
	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			return err
		}

		err = fn(item)
		if err != nil {
			return err
		}
	}

	return nil
}

func (it *PaginationIterator[T]) fetchPage() error {
	if it.started {
		it.token = it.current.NextPageToken
	}

	err := it.guard.next(it.token)
	if err != nil {
		return err
	}

	page, err := it.fetch(it.ctx, it.token)
	if err != nil {
		return err
	}

	it.current = page
	it.index = 0
	it.started = true

	return nil
}

// PageResult is one page delivered by StreamPages.
type PageResult[T any] struct {
	Items []T
	Err   error
}

// StreamPages fetches pages on a goroutine and delivers them in order. The
// channel is closed after the last page or the first error.
func StreamPages[T any](ctx context.Context, fetch PageFetcher[T], opts *PaginationOptions) <-chan PageResult[T] {
	results := make(chan PageResult[T])

	go func() {
		defer close(results)

		guard := newPageGuard(opts)
		token := ""

		for {
			err := guard.next(token)
			if err != nil {
				send(ctx, results, PageResult[T]{Err: err})

				return
			}

			page, err := fetch(ctx, token)
			if err != nil {
				send(ctx, results, PageResult[T]{Err: err})

				return
			}

			if !send(ctx, results, PageResult[T]{Items: page.Items}) || !page.HasNext() {
				return
			}

			token = page.NextPageToken
		}
	}()

	return results
}

func send[T any](ctx context.Context, results chan<- PageResult[T], result PageResult[T]) bool {
	select {
	case results <- result:
		return true
	case <-ctx.Done():
		return false
	}
}
