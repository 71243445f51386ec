package opensearch

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/ca-srg/searchguard/internal/guard"
)

func requireIndex(index string) (string, error) {
	name := guard.TrimToNullable(&index)
	if name == nil {
		return "", NewSearchError(ErrorTypeValidation, "index name cannot be empty")
	}
	return *name, nil
}

// CreateIndex creates index with the given settings/mappings body (may be nil).
func (c *Client) CreateIndex(ctx context.Context, index string, body any) error {
	name, err := requireIndex(index)
	if err != nil {
		return err
	}

	payload, err := encodeBody(body)
	if err != nil {
		return NewSearchError(ErrorTypeValidation, fmt.Sprintf("failed to marshal index body: %v", err))
	}

	_, err = c.Do(ctx, "CreateIndex", func(ctx context.Context) error {
		_, err := c.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
			Index: name,
			Body:  bodyReader(payload),
		})
		return err
	})
	if err != nil {
		return err
	}

	log.Printf("Created index %s", name)
	return nil
}

// IndexExists reports whether index exists. A 404 without an error body means
// it does not.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	name, err := requireIndex(index)
	if err != nil {
		return false, err
	}

	ex, err := c.do(ctx, "IndexExists", func(ctx context.Context) error {
		_, err := c.client.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{
			Indices: []string{name},
		})
		return err
	}, http.StatusNotFound)
	if err != nil {
		return false, err
	}

	return ex.Status != http.StatusNotFound, nil
}

func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	name, err := requireIndex(index)
	if err != nil {
		return err
	}

	_, err = c.Do(ctx, "DeleteIndex", func(ctx context.Context) error {
		_, err := c.client.Indices.Delete(ctx, opensearchapi.IndicesDeleteReq{
			Indices: []string{name},
		})
		return err
	})
	if err != nil {
		return err
	}

	log.Printf("Deleted index %s", name)
	return nil
}

// RefreshIndex makes recent writes to index visible to search.
func (c *Client) RefreshIndex(ctx context.Context, index string) error {
	name, err := requireIndex(index)
	if err != nil {
		return err
	}

	_, err = c.Do(ctx, "RefreshIndex", func(ctx context.Context) error {
		_, err := c.client.Indices.Refresh(ctx, &opensearchapi.IndicesRefreshReq{
			Indices: []string{name},
		})
		return err
	})
	return err
}
