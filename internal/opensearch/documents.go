package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/ca-srg/searchguard/internal/guard"
)

// IndexDocument stores doc under id (generated by the server when id is
// blank) and returns the id the document was stored under.
func (c *Client) IndexDocument(ctx context.Context, index, id string, doc any) (string, error) {
	if _, err := guard.RequireNonNull(doc, "doc"); err != nil {
		return "", err
	}
	indexName := guard.TrimToNullable(&index)
	if indexName == nil {
		return "", NewSearchError(ErrorTypeValidation, "index name cannot be empty")
	}

	payload, err := encodeBody(doc)
	if err != nil {
		return "", NewSearchError(ErrorTypeValidation, fmt.Sprintf("failed to marshal document: %v", err))
	}

	req := opensearchapi.IndexReq{
		Index: *indexName,
		Body:  bodyReader(payload),
	}
	if docID := guard.TrimToNullable(&id); docID != nil {
		req.DocumentID = *docID
	}

	var storedID string
	_, err = c.Do(ctx, "IndexDocument", func(ctx context.Context) error {
		resp, err := c.client.Index(ctx, req)
		if err != nil {
			return err
		}
		storedID = resp.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	return storedID, nil
}

// GetDocument returns the _source of a document. A missing document yields
// ErrDocumentNotFound; a missing index is reported by the server as an error.
func (c *Client) GetDocument(ctx context.Context, index, id string) (json.RawMessage, error) {
	indexName := guard.TrimToNullable(&index)
	docID := guard.TrimToNullable(&id)
	if indexName == nil || docID == nil {
		return nil, NewSearchError(ErrorTypeValidation, "index name and document id are required")
	}

	var source json.RawMessage
	ex, err := c.do(ctx, "GetDocument", func(ctx context.Context) error {
		resp, err := c.client.Document.Get(ctx, opensearchapi.DocumentGetReq{
			Index:      *indexName,
			DocumentID: *docID,
		})
		if err != nil {
			return err
		}
		if resp.Found {
			source = resp.Source
		}
		return nil
	}, http.StatusNotFound)
	if err != nil {
		return nil, err
	}

	if ex.Status == http.StatusNotFound || source == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, *indexName, *docID)
	}
	return source, nil
}
