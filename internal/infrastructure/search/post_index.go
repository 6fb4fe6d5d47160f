package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/go-post-feed/internal/application"
	"github.com/oksasatya/go-post-feed/internal/domain/entity"
)

// PostIndex keeps post text searchable in Elasticsearch.
type PostIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewPostIndex(es *elasticsearch.Client, index string) *PostIndex {
	return &PostIndex{es: es, index: index}
}

type postDoc struct {
	ID        string `json:"id"`
	PostedBy  string `json:"postedBy"`
	Text      string `json:"text"`
	Img       string `json:"img,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func (x *PostIndex) Index(ctx context.Context, p *entity.Post) error {
	b, err := json.Marshal(postDoc{
		ID:        p.ID,
		PostedBy:  p.PostedBy,
		Text:      p.Text,
		Img:       p.Img,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.index, DocumentID: p.ID, Body: bytes.NewReader(b), Refresh: "false"}
	res, err := req.Do(ctx, x.es)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es index: %s", res.Status())
	}
	return nil
}

func (x *PostIndex) Delete(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{Index: x.index, DocumentID: id}
	res, err := req.Do(ctx, x.es)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("es delete: %s", res.Status())
	}
	return nil
}

// Search runs a match query on post text, newest first among equal scores.
func (x *PostIndex) Search(ctx context.Context, q string, size int) ([]application.PostHit, error) {
	query := map[string]any{
		"query": map[string]any{
			"match": map[string]any{
				"text": map[string]any{"query": q, "operator": "and", "fuzziness": "AUTO"},
			},
		},
		"sort": []any{"_score", map[string]any{"createdAt": "desc"}},
		"size": size,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		// index not created yet
		if res.StatusCode == 404 {
			return []application.PostHit{}, nil
		}
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	return decodeHits(res.Body)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source postDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func decodeHits(r io.Reader) ([]application.PostHit, error) {
	var parsed searchResponse
	if err := json.NewDecoder(r).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]application.PostHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, application.PostHit{
			ID:        h.ID,
			PostedBy:  h.Source.PostedBy,
			Text:      h.Source.Text,
			Img:       h.Source.Img,
			CreatedAt: h.Source.CreatedAt,
			Score:     h.Score,
		})
	}
	return out, nil
}

// EnsureIndex creates the index with a text mapping if it does not exist.
func (x *PostIndex) EnsureIndex(ctx context.Context) error {
	res, err := x.es.Indices.Exists([]string{x.index}, x.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	mapping := `{"mappings":{"properties":{"id":{"type":"keyword"},"postedBy":{"type":"keyword"},"text":{"type":"text"},"img":{"type":"keyword","index":false},"createdAt":{"type":"date"}}}}`
	res, err = x.es.Indices.Create(x.index, x.es.Indices.Create.WithContext(ctx), x.es.Indices.Create.WithBody(strings.NewReader(mapping)))
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && res.StatusCode != 400 {
		return fmt.Errorf("es create index: %s", res.Status())
	}
	return nil
}

var _ application.PostIndexer = (*PostIndex)(nil)
