package cache

import (
	"context"
	"sort"

	"exchangeflow/internal/domain"
)

// WriteThrough runs the store write and, only when it succeeds, applies the
// same change to the graph. The caller holds the write lock so no reader
// sees the two halves apart.
func (g *Graph) WriteThrough(ctx context.Context, entity string, id interface{}, write func(ctx context.Context) error, apply func()) error {
	if err := write(ctx); err != nil {
		g.logger.ErrorContext(ctx, "Write-through failed, cache left unchanged", map[string]interface{}{
			"entity": entity,
			"id":     id,
			"error":  err.Error(),
		})
		return err
	}

	apply()
	g.logger.Debug("Write-through applied", map[string]interface{}{"entity": entity, "id": id})
	return nil
}

func sortOffers(out []*domain.Offer) {
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
}
