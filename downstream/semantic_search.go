package downstream

import "context"

// SemanticSearch proxies to the semantic-search-service's POST /v1/search.
type SemanticSearch struct {
	*Client
}

// NewSemanticSearch constructs a semantic-search client.
func NewSemanticSearch(baseURL string) *SemanticSearch {
	return &SemanticSearch{Client: NewClient("semantic-search", baseURL, 0)}
}

// SearchChunk is one retrieved chunk of content.
type SearchChunk struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Chunks  []SearchChunk `json:"chunks"`
	Query   string        `json:"query"`
	Message string        `json:"message"`
}

// Search issues a semantic search for query and returns the retrieved
// chunks.
func (s *SemanticSearch) Search(ctx context.Context, query string) ([]SearchChunk, error) {
	var resp searchResponse
	if err := s.postJSON(ctx, "/v1/search", searchRequest{Query: query}, &resp); err != nil {
		return nil, err
	}
	return resp.Chunks, nil
}
