package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	meili "github.com/meilisearch/meilisearch-go"

	"github.com/ta21cos/thread-type-note-app/internal/models"
)

// DefaultMeiliIndex is the index uid used when none is configured.
const DefaultMeiliIndex = "notes"

type meiliDoc struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Meili indexes notes in Meilisearch.
type Meili struct {
	client meili.ServiceManager
	index  string
}

// NewMeili creates a client and makes sure the index exists.
func NewMeili(url, apiKey, index string) (*Meili, error) {
	if index == "" {
		index = DefaultMeiliIndex
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		index:  index,
	}
	if _, err := m.client.Health(); err != nil {
		return nil, fmt.Errorf("search: meilisearch unavailable at %s: %w", url, err)
	}
	// Fails harmlessly when the index already exists.
	_, _ = m.client.CreateIndex(&meili.IndexConfig{Uid: index, PrimaryKey: "id"})
	searchable := []string{"content"}
	if _, err := m.client.Index(index).UpdateSearchableAttributes(&searchable); err != nil {
		return nil, fmt.Errorf("search: configure index %s: %w", index, err)
	}
	return m, nil
}

func (m *Meili) Index(_ context.Context, id, content string) error {
	_, err := m.client.Index(m.index).AddDocuments([]meiliDoc{{ID: id, Content: content}}, nil)
	return err
}

func (m *Meili) Remove(_ context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := m.client.Index(m.index).DeleteDocument(id, nil); err != nil {
			return fmt.Errorf("search: delete %s: %w", id, err)
		}
	}
	return nil
}

func (m *Meili) Search(_ context.Context, query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	resp, err := m.client.Index(m.index).Search(query, &meili.SearchRequest{
		Limit:                 int64(limit),
		AttributesToHighlight: []string{"content"},
		HighlightPreTag:       "<b>",
		HighlightPostTag:      "</b>",
	})
	if err != nil {
		return nil, fmt.Errorf("search: meilisearch query: %w", err)
	}
	out := make([]models.SearchHit, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		hit := toSearchHit(h)
		if hit.NoteID != "" {
			out = append(out, hit)
		}
	}
	return out, nil
}

func toSearchHit(h meili.Hit) models.SearchHit {
	return models.SearchHit{
		NoteID:  decodeString(h, "id"),
		Snippet: firstNonBlank(decodeFormatted(h, "content"), decodeString(h, "content")),
	}
}

func decodeString(h meili.Hit, key string) string {
	raw, ok := h[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func decodeFormatted(h meili.Hit, key string) string {
	raw, ok := h["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
