// Package search provides full-text lookup over ingested expenses using a
// Bleve index, with a fuzzy merchant matcher as a lightweight fallback.
package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/expense"
)

// ExpenseDocument is the searchable projection of a transaction.
type ExpenseDocument struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Merchant  string `json:"merchant"`
	Category  string `json:"category"`
	RawText   string `json:"raw_text"`
	Currency  string `json:"currency"`
	Direction string `json:"direction"`
}

// Hit is one search result with its relevance score.
type Hit struct {
	ID       int64   `json:"id"`
	Merchant string  `json:"merchant"`
	Category string  `json:"category"`
	RawText  string  `json:"raw_text"`
	Score    float64 `json:"score"`
}

// Index wraps a Bleve index over expense documents.
type Index struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewIndex creates the expense search index. An empty path yields an
// in-memory index; otherwise the index is created or reopened on disk.
func NewIndex(path string) (*Index, error) {
	indexMapping := buildIndexMapping()

	var (
		index bleve.Index
		err   error
	)
	if path == "" {
		index, err = bleve.NewMemOnly(indexMapping)
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
			return nil, fmt.Errorf("creating index directory: %w", mkdirErr)
		}
		index, err = bleve.New(path, indexMapping)
	} else {
		index, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}

	return &Index{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("user_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("merchant", textFieldMapping)
	docMapping.AddFieldMappingsAt("category", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("raw_text", textFieldMapping)
	docMapping.AddFieldMappingsAt("currency", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("direction", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// IndexTransaction adds or replaces one transaction in the index.
func (i *Index) IndexTransaction(t *expense.Transaction) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	doc := ExpenseDocument{
		ID:        strconv.FormatInt(t.ID, 10),
		UserID:    t.UserID,
		Merchant:  t.MerchantClean,
		Category:  t.Category,
		RawText:   t.RawText,
		Currency:  t.Currency,
		Direction: t.Direction,
	}
	if err := i.index.Index(doc.ID, doc); err != nil {
		return fmt.Errorf("indexing expense %d: %w", t.ID, err)
	}
	return nil
}

// Remove deletes one transaction from the index. Missing documents are not
// an error.
func (i *Index) Remove(id int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Delete(strconv.FormatInt(id, 10))
}

// Search runs a fuzzy full-text query scoped to one user.
func (i *Index) Search(userID, query string, limit int) ([]Hit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	userQuery := bleve.NewTermQuery(userID)
	userQuery.SetField("user_id")

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetFuzziness(1)

	searchRequest := bleve.NewSearchRequest(bleve.NewConjunctionQuery(userQuery, matchQuery))
	searchRequest.Size = limit
	searchRequest.Fields = []string{"merchant", "category", "raw_text"}

	res, err := i.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("searching expenses: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hit := Hit{ID: id, Score: h.Score}
		if v, ok := h.Fields["merchant"].(string); ok {
			hit.Merchant = v
		}
		if v, ok := h.Fields["category"].(string); ok {
			hit.Category = v
		}
		if v, ok := h.Fields["raw_text"].(string); ok {
			hit.RawText = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close releases the underlying index.
func (i *Index) Close() error {
	return i.index.Close()
}
