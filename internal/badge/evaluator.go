package badge

// Evaluator derives the earned badge set from aggregate stats. It holds no
// state besides the catalog, so re-evaluating is always safe.
type Evaluator struct {
	catalog []Badge
	byID    map[string]Badge
}

func NewEvaluator(catalog []Badge) *Evaluator {
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}

	byID := make(map[string]Badge, len(catalog))
	for _, b := range catalog {
		byID[b.ID] = b
	}

	return &Evaluator{catalog: catalog, byID: byID}
}

// Catalog returns the badges in declaration order.
func (e *Evaluator) Catalog() []Badge {
	out := make([]Badge, len(e.catalog))
	copy(out, e.catalog)
	return out
}

func (e *Evaluator) Badge(id string) (Badge, bool) {
	b, ok := e.byID[id]
	return b, ok
}

// Evaluate returns the IDs of every badge satisfied by s, in catalog order.
func (e *Evaluator) Evaluate(s Stats) []string {
	ids := make([]string, 0, len(e.catalog))
	for _, b := range e.catalog {
		if b.Rule.satisfied(s) {
			ids = append(ids, b.ID)
		}
	}

	return ids
}

// NewlyUnlocked returns the satisfied badges that are not in earned.
func (e *Evaluator) NewlyUnlocked(s Stats, earned map[string]bool) []string {
	var ids []string
	for _, id := range e.Evaluate(s) {
		if !earned[id] {
			ids = append(ids, id)
		}
	}

	return ids
}
