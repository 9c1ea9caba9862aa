package executor

import (
	"context"
	"net/url"

	"github.com/rubiojr/carefinder/pkg/provider"
)

// Searcher is the remote search API: an opaque, paginated provider search
// taking the parameters built by RemoteParams.
type Searcher interface {
	Search(ctx context.Context, params url.Values) (*Response, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, params url.Values) (*Response, error)

func (f SearcherFunc) Search(ctx context.Context, params url.Values) (*Response, error) {
	return f(ctx, params)
}

// Response is one page of search results.
type Response struct {
	Items       []provider.Provider
	CurrentPage int
	TotalPages  int
	TotalCount  int
}

// Envelope is the JSON body of GET /api/search.
type Envelope struct {
	Success  bool                `json:"success"`
	Data     []provider.Provider `json:"data"`
	Metadata Metadata            `json:"metadata"`
	Error    string              `json:"error,omitempty"`
}

type Metadata struct {
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalCount  int `json:"totalCount"`
}

// Envelope wraps the response for the wire.
func (r *Response) Envelope() Envelope {
	data := r.Items
	if data == nil {
		data = []provider.Provider{}
	}
	return Envelope{
		Success: true,
		Data:    data,
		Metadata: Metadata{Pagination: Pagination{
			CurrentPage: r.CurrentPage,
			TotalPages:  r.TotalPages,
			TotalCount:  r.TotalCount,
		}},
	}
}

// Response unwraps a decoded envelope.
func (e Envelope) Response() *Response {
	return &Response{
		Items:       e.Data,
		CurrentPage: e.Metadata.Pagination.CurrentPage,
		TotalPages:  e.Metadata.Pagination.TotalPages,
		TotalCount:  e.Metadata.Pagination.TotalCount,
	}
}
