package historian

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// IndexItem is one entry to upsert into the vector index.
type IndexItem struct {
	ID        string
	Embedding []float64
	Metadata  map[string]string
	Document  string
}

// IndexResult is one nearest neighbor returned by a query.
type IndexResult struct {
	ID       string
	Distance float64
	Metadata map[string]string
}

// VectorIndex is the similarity-search capability the matcher depends on.
// The index persists across runs; Add during seeding upserts by ID.
type VectorIndex interface {
	Count(ctx context.Context) (int, error)
	Add(ctx context.Context, items []IndexItem) error
	Query(ctx context.Context, embedding []float64, k int) ([]IndexResult, error)
}

// ChromaIndex talks to a Chroma-compatible vector store over HTTP.
type ChromaIndex struct {
	baseURL    string
	collection string
	client     *http.Client

	collectionID string
}

// NewChromaIndex creates a client for one named collection, creating the
// collection on first use.
func NewChromaIndex(baseURL, collection string) *ChromaIndex {
	return &ChromaIndex{
		baseURL:    baseURL,
		collection: collection,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// ensureCollection resolves (or creates) the collection and caches its ID.
func (c *ChromaIndex) ensureCollection(ctx context.Context) error {
	if c.collectionID != "" {
		return nil
	}

	body := map[string]any{"name": c.collection, "get_or_create": true}
	var result struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/collections", body, &result); err != nil {
		return fmt.Errorf("ensuring collection %q: %w", c.collection, err)
	}
	if result.ID == "" {
		return fmt.Errorf("collection %q has no id", c.collection)
	}
	c.collectionID = result.ID
	return nil
}

// Count returns the number of entries in the collection.
func (c *ChromaIndex) Count(ctx context.Context) (int, error) {
	if err := c.ensureCollection(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET",
		c.baseURL+"/api/v1/collections/"+url.PathEscape(c.collectionID)+"/count", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("counting collection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("count returned %d", resp.StatusCode)
	}

	var count int
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return 0, fmt.Errorf("decoding count: %w", err)
	}
	return count, nil
}

// Add upserts items into the collection.
func (c *ChromaIndex) Add(ctx context.Context, items []IndexItem) error {
	if err := c.ensureCollection(ctx); err != nil {
		return err
	}

	ids := make([]string, len(items))
	embeddings := make([][]float64, len(items))
	metadatas := make([]map[string]string, len(items))
	documents := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
		embeddings[i] = item.Embedding
		metadatas[i] = item.Metadata
		documents[i] = item.Document
	}

	body := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"metadatas":  metadatas,
		"documents":  documents,
	}
	if err := c.post(ctx, "/api/v1/collections/"+url.PathEscape(c.collectionID)+"/upsert", body, nil); err != nil {
		return fmt.Errorf("upserting %d items: %w", len(items), err)
	}
	return nil
}

// Query returns the k nearest neighbors of an embedding.
func (c *ChromaIndex) Query(ctx context.Context, embedding []float64, k int) ([]IndexResult, error) {
	if err := c.ensureCollection(ctx); err != nil {
		return nil, err
	}

	body := map[string]any{
		"query_embeddings": [][]float64{embedding},
		"n_results":        k,
		"include":          []string{"metadatas", "distances"},
	}
	var result struct {
		IDs       [][]string            `json:"ids"`
		Distances [][]float64           `json:"distances"`
		Metadatas [][]map[string]string `json:"metadatas"`
	}
	if err := c.post(ctx, "/api/v1/collections/"+url.PathEscape(c.collectionID)+"/query", body, &result); err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	if len(result.IDs) == 0 {
		return nil, nil
	}

	var matches []IndexResult
	for i, id := range result.IDs[0] {
		m := IndexResult{ID: id}
		if i < len(result.Distances[0]) {
			m.Distance = result.Distances[0][i]
		}
		if len(result.Metadatas) > 0 && i < len(result.Metadatas[0]) {
			m.Metadata = result.Metadatas[0][i]
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (c *ChromaIndex) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("index returned %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
