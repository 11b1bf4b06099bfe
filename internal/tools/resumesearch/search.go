package resumesearch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/talentmatch/internal/store"
)

const DefaultMaxResults = 10

// Index is an in-memory BM25 index over stored resumes, exposed to the
// sourcing loop as the search_resumes tool.
type Index struct {
	mu         sync.RWMutex
	idx        bleve.Index
	byID       map[string]store.ResumeRecord
	maxResults int
}

// searchDoc is the flattened shape handed to bleve.
type searchDoc struct {
	Name       string `json:"name"`
	Skills     string `json:"skills"`
	Experience string `json:"experience"`
	Education  string `json:"education"`
	Summary    string `json:"summary"`
}

func New(maxResults int) (*Index, error) {
	if maxResults <= 0 || maxResults > 50 {
		maxResults = DefaultMaxResults
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx, byID: map[string]store.ResumeRecord{}, maxResults: maxResults}, nil
}

// Add indexes one resume, replacing any previous version.
func (i *Index) Add(rec store.ResumeRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.idx.Index(rec.ID, searchDoc{
		Name:       rec.Name,
		Skills:     strings.Join(rec.Skills, " "),
		Experience: rec.Experience,
		Education:  rec.Education,
		Summary:    rec.Summary,
	}); err != nil {
		return err
	}
	i.byID[rec.ID] = rec
	return nil
}

// Remove drops a resume from the index.
func (i *Index) Remove(id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.byID, id)
	return i.idx.Delete(id)
}

func (*Index) Name() string { return "search_resumes" }

// Hit is one search result, carrying the desensitized resume so tool
// output can flow to either side of a negotiation.
type Hit struct {
	Score  float64            `json:"score"`
	Resume store.ResumeRecord `json:"resume"`
}

func (i *Index) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	q, _ := params["query"].(string)
	if strings.TrimSpace(q) == "" {
		return "", errors.New("search_resumes requires a query parameter")
	}
	k := i.maxResults
	if v, ok := params["limit"].(float64); ok && int(v) > 0 && int(v) < k {
		k = int(v)
	}

	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := i.idx.SearchInContext(ctx, searchReq)
	if err != nil {
		return "", err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		rec, ok := i.byID[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Score: h.Score, Resume: rec.Desensitized()})
	}

	b, err := json.Marshal(map[string]interface{}{
		"query": q,
		"total": len(hits),
		"hits":  hits,
	})
	return string(b), err
}
