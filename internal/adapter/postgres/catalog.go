package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adcp-engine/internal/core/domain"
)

// Catalog implements port.CatalogAccessor over the products table. One
// batched query serves a whole validation pass.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog returns a catalog accessor backed by the pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// GetProducts returns products by product id scoped to the tenant. Ids that
// do not exist for the tenant are simply absent from the result.
func (c *Catalog) GetProducts(ctx context.Context, tenantID string, productIDs []string) (map[string]domain.Product, error) {
	rows, err := c.pool.Query(ctx, `SELECT id, tenant_id, product_id, name,
		COALESCE(description, ''), product_type, format_ids, price_unit,
		base_price, currency, minimum_spend, estimated_reach,
		matched_audience_ids, is_active, created_at, updated_at
		FROM products WHERE tenant_id = $1 AND product_id = ANY($2)`,
		tenantID, productIDs)
	if err != nil {
		return nil, err
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		var (
			p         domain.Product
			formats   []byte
			audiences []byte
			unit      string
			ptype     string
			currency  string
		)
		err := row.Scan(&p.ID, &p.TenantID, &p.ProductID, &p.Name, &p.Description,
			&ptype, &formats, &unit, &p.BasePrice.Value.Amount, &currency,
			&p.MinimumSpend.Amount, &p.EstimatedReach, &audiences, &p.Active,
			&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return p, err
		}
		p.Type = domain.ProductType(ptype)
		p.BasePrice.Unit = domain.PriceUnit(unit)
		p.BasePrice.Value.Currency = currency
		p.MinimumSpend.Currency = currency
		if err = json.Unmarshal(formats, &p.FormatIDs); err != nil {
			return p, err
		}
		if len(audiences) > 0 {
			if err = json.Unmarshal(audiences, &p.MatchedAudienceIDs); err != nil {
				return p, err
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	result := make(map[string]domain.Product, len(products))
	for _, p := range products {
		result[p.ProductID] = p
	}
	return result, nil
}
