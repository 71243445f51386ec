package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/ca-srg/searchguard/internal/guard"
)

type SearchHit struct {
	ID     string          `json:"_id"`
	Index  string          `json:"_index"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

type SearchResult struct {
	Took      int         `json:"took"`
	TotalHits int         `json:"total_hits"`
	Hits      []SearchHit `json:"hits"`
}

// Search runs body against index. body may be raw JSON ([]byte, string,
// json.RawMessage) or any value that marshals to a query document.
func (c *Client) Search(ctx context.Context, index string, body any) (*SearchResult, error) {
	result, _, err := c.SearchExchange(ctx, index, body)
	return result, err
}

// SearchExchange is Search that also returns the recorded Exchange. The
// Exchange is nil when no request was sent.
func (c *Client) SearchExchange(ctx context.Context, index string, body any) (*SearchResult, *Exchange, error) {
	indexName := guard.TrimToNullable(&index)
	if indexName == nil {
		return nil, nil, NewSearchError(ErrorTypeValidation, "index name cannot be empty")
	}

	payload, err := encodeBody(body)
	if err != nil {
		return nil, nil, NewSearchError(ErrorTypeValidation, fmt.Sprintf("failed to marshal search body: %v", err))
	}

	var result *SearchResult
	ex, err := c.Do(ctx, "Search", func(ctx context.Context) error {
		resp, err := c.client.Search(ctx, &opensearchapi.SearchReq{
			Indices: []string{*indexName},
			Body:    bodyReader(payload),
		})
		if err != nil {
			return err
		}

		result = &SearchResult{
			Took:      resp.Took,
			TotalHits: resp.Hits.Total.Value,
			Hits:      make([]SearchHit, len(resp.Hits.Hits)),
		}
		for i, hit := range resp.Hits.Hits {
			result.Hits[i] = SearchHit{
				ID:     hit.ID,
				Index:  hit.Index,
				Score:  float64(hit.Score),
				Source: hit.Source,
			}
		}
		return nil
	})
	if err != nil {
		return nil, ex, err
	}

	log.Printf("Search on %s found %d results in %dms", *indexName, result.TotalHits, result.Took)
	return result, ex, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return json.Marshal(body)
	}
}

func bodyReader(payload []byte) io.Reader {
	if payload == nil {
		return nil
	}
	return bytes.NewReader(payload)
}
