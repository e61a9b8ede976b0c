package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

type TaxonomyRepository struct {
	mu    sync.RWMutex
	nodes []domain.TaxonomyNode
}

func NewTaxonomyRepository(nodes ...domain.TaxonomyNode) *TaxonomyRepository {
	return &TaxonomyRepository{nodes: nodes}
}

func (r *TaxonomyRepository) Add(nodes ...domain.TaxonomyNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, nodes...)
}

// Children lists direct children of parentID ("" for roots), optionally
// restricted to one tag.
func (r *TaxonomyRepository) Children(ctx context.Context, parentID, tag string) ([]domain.TaxonomyNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.TaxonomyNode
	for _, n := range r.nodes {
		if n.ParentID != parentID {
			continue
		}
		if tag != "" && n.Tag != tag {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
