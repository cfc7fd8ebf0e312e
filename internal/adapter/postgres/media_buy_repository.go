package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adcp-engine/internal/core/domain"
	"adcp-engine/internal/core/port"
)

// MediaBuyRepository implements port.MediaBuyRepository using pgxpool. A buy
// and its packages are written inside one transaction, and updates take a
// row lock on the buy so concurrent updates to the same buy serialize while
// distinct buys never block each other.
type MediaBuyRepository struct {
	pool *pgxpool.Pool
}

// NewMediaBuyRepository returns a new repository instance.
func NewMediaBuyRepository(pool *pgxpool.Pool) *MediaBuyRepository {
	return &MediaBuyRepository{pool: pool}
}

// CreateMediaBuy persists the buy, its packages and their format references
// atomically. Any failure rolls the whole unit back.
func (r *MediaBuyRepository) CreateMediaBuy(ctx context.Context, buy *domain.MediaBuy) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	workflow, err := json.Marshal(buy.Workflow)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO media_buys
		(id, tenant_id, media_buy_id, principal_id, buyer_ref, total_budget, currency,
		 flight_start_date, flight_end_date, status, workflow, audience_id,
		 creative_deadline, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		buy.ID, buy.TenantID, buy.MediaBuyID, buy.PrincipalID, buy.BuyerRef,
		buy.TotalBudget.Amount, buy.TotalBudget.Currency,
		buy.FlightStart, buy.FlightEnd, buy.Status, workflow, nullIfEmpty(buy.AudienceID),
		buy.CreativeDeadline, buy.Version, buy.CreatedAt, buy.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range buy.Packages {
		if err = insertPackage(ctx, tx, buy.ID, &buy.Packages[i]); err != nil {
			return err
		}
	}
	return nil
}

func insertPackage(ctx context.Context, tx pgx.Tx, buyID string, pkg *domain.Package) error {
	targeting, err := json.Marshal(pkg.Targeting)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO packages
		(id, media_buy_id, package_id, buyer_ref, product_id, budget, currency,
		 pricing_option_id, pacing, targeting_overlay, price_unit, base_price,
		 discount_fraction, final_price, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		pkg.ID, buyID, pkg.PackageID, pkg.BuyerRef, pkg.ProductID,
		pkg.Budget.Amount, pkg.Budget.Currency, pkg.PricingOptionID, pkg.Pacing,
		targeting, pkg.Price.Base.Unit, pkg.Price.Base.Value.Amount,
		pkg.Price.DiscountFraction, pkg.Price.Final.Amount, pkg.Status,
		pkg.CreatedAt, pkg.UpdatedAt)
	if err != nil {
		return err
	}
	for _, f := range pkg.Formats {
		_, err = tx.Exec(ctx, `INSERT INTO package_formats (id, package_id, agent_url, format_id)
			VALUES (gen_random_uuid()::text, $1, $2, $3)`,
			pkg.ID, f.AgentURL, f.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetMediaBuy returns the buy with its packages, scoped to the principal.
func (r *MediaBuyRepository) GetMediaBuy(ctx context.Context, mediaBuyID, principalID string) (*domain.MediaBuy, error) {
	return r.getMediaBuy(ctx, r.pool, mediaBuyID, principalID, false)
}

// querier abstracts pool and tx for shared read paths.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *MediaBuyRepository) getMediaBuy(ctx context.Context, q querier, mediaBuyID, principalID string, forUpdate bool) (*domain.MediaBuy, error) {
	query := `SELECT id, tenant_id, media_buy_id, principal_id, buyer_ref, total_budget,
		currency, flight_start_date, flight_end_date, status, workflow,
		COALESCE(audience_id, ''), creative_deadline,
		cached_impressions, cached_clicks, cached_conversions, cached_spend,
		version, created_at, updated_at
		FROM media_buys WHERE media_buy_id = $1 AND principal_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		buy        domain.MediaBuy
		workflow   []byte
		statusRaw  string
		currency   string
		spendCache int64
	)
	err := q.QueryRow(ctx, query, mediaBuyID, principalID).Scan(
		&buy.ID, &buy.TenantID, &buy.MediaBuyID, &buy.PrincipalID, &buy.BuyerRef,
		&buy.TotalBudget.Amount, &currency, &buy.FlightStart, &buy.FlightEnd,
		&statusRaw, &workflow, &buy.AudienceID, &buy.CreativeDeadline,
		&buy.Delivery.Impressions, &buy.Delivery.Clicks, &buy.Delivery.Conversions,
		&spendCache, &buy.Version, &buy.CreatedAt, &buy.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMediaBuyNotFound
	}
	if err != nil {
		return nil, err
	}
	buy.TotalBudget.Currency = currency
	buy.Status = domain.Status(statusRaw)
	buy.Delivery.Spend = domain.Money{Amount: spendCache, Currency: currency}
	if len(workflow) > 0 {
		if err = json.Unmarshal(workflow, &buy.Workflow); err != nil {
			return nil, err
		}
	}

	buy.Packages, err = loadPackages(ctx, q, buy.ID)
	if err != nil {
		return nil, err
	}
	return &buy, nil
}

func loadPackages(ctx context.Context, q querier, buyID string) ([]domain.Package, error) {
	rows, err := q.Query(ctx, `SELECT id, package_id, buyer_ref, product_id, budget,
		currency, pricing_option_id, pacing, targeting_overlay, price_unit,
		base_price, discount_fraction, final_price, status, created_at, updated_at
		FROM packages WHERE media_buy_id = $1 ORDER BY package_id`, buyID)
	if err != nil {
		return nil, err
	}
	packages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Package, error) {
		var (
			pkg       domain.Package
			currency  string
			targeting []byte
			pacing    string
			status    string
			unit      string
		)
		err := row.Scan(&pkg.ID, &pkg.PackageID, &pkg.BuyerRef, &pkg.ProductID,
			&pkg.Budget.Amount, &currency, &pkg.PricingOptionID, &pacing,
			&targeting, &unit, &pkg.Price.Base.Value.Amount,
			&pkg.Price.DiscountFraction, &pkg.Price.Final.Amount, &status,
			&pkg.CreatedAt, &pkg.UpdatedAt)
		if err != nil {
			return pkg, err
		}
		pkg.Budget.Currency = currency
		pkg.Pacing = domain.Pacing(pacing)
		pkg.Status = domain.Status(status)
		pkg.Price.Base.Unit = domain.PriceUnit(unit)
		pkg.Price.Base.Value.Currency = currency
		pkg.Price.Final.Currency = currency
		if len(targeting) > 0 {
			if err = json.Unmarshal(targeting, &pkg.Targeting); err != nil {
				return pkg, err
			}
		}
		return pkg, nil
	})
	if err != nil {
		return nil, err
	}

	for i := range packages {
		packages[i].Formats, err = loadFormats(ctx, q, packages[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return packages, nil
}

func loadFormats(ctx context.Context, q querier, packageID string) ([]domain.FormatRef, error) {
	rows, err := q.Query(ctx, `SELECT agent_url, format_id FROM package_formats
		WHERE package_id = $1 ORDER BY format_id`, packageID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.FormatRef, error) {
		var ref domain.FormatRef
		err := row.Scan(&ref.AgentURL, &ref.ID)
		return ref, err
	})
}

// UpdateMediaBuy loads the buy under FOR UPDATE, applies the mutation and
// persists the result in the same transaction. An error from apply rolls
// everything back with nothing written.
func (r *MediaBuyRepository) UpdateMediaBuy(ctx context.Context, mediaBuyID, principalID string, apply func(*domain.MediaBuy) error) (*domain.MediaBuy, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	buy, err := r.getMediaBuy(ctx, tx, mediaBuyID, principalID, true)
	if err != nil {
		return nil, err
	}
	if err = apply(buy); err != nil {
		return nil, err
	}

	workflow, err := json.Marshal(buy.Workflow)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `UPDATE media_buys SET total_budget = $1,
		flight_start_date = $2, flight_end_date = $3, status = $4, workflow = $5,
		creative_deadline = $6, version = $7, updated_at = $8
		WHERE id = $9`,
		buy.TotalBudget.Amount, buy.FlightStart, buy.FlightEnd, buy.Status,
		workflow, buy.CreativeDeadline, buy.Version, buy.UpdatedAt, buy.ID)
	if err != nil {
		return nil, err
	}

	for i := range buy.Packages {
		pkg := &buy.Packages[i]
		var targeting []byte
		targeting, err = json.Marshal(pkg.Targeting)
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx, `UPDATE packages SET budget = $1, pacing = $2,
			targeting_overlay = $3, status = $4, updated_at = $5
			WHERE id = $6`,
			pkg.Budget.Amount, pkg.Pacing, targeting, pkg.Status, pkg.UpdatedAt, pkg.ID)
		if err != nil {
			return nil, err
		}
	}
	return buy, nil
}

// SumDelivery aggregates delivery rows for the buy over the window. The row
// count lets callers distinguish "no delivery yet" from "summed to zero".
func (r *MediaBuyRepository) SumDelivery(ctx context.Context, buyID string, window port.Window) (port.DeliverySums, error) {
	query := `SELECT COUNT(*),
		COALESCE(SUM(impressions), 0), COALESCE(SUM(clicks), 0),
		COALESCE(SUM(conversions), 0), COALESCE(SUM(spend), 0)
		FROM delivery_metrics WHERE media_buy_id = $1`
	args := []any{buyID}
	query, args = appendWindow(query, args, window)

	var sums port.DeliverySums
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&sums.RowCount,
		&sums.Totals.Impressions, &sums.Totals.Clicks,
		&sums.Totals.Conversions, &sums.Totals.Spend.Amount)
	if err != nil {
		return port.DeliverySums{}, err
	}
	return sums, nil
}

// DeliveryBreakdown groups the same rows by day, device and geo.
func (r *MediaBuyRepository) DeliveryBreakdown(ctx context.Context, buyID string, window port.Window) (*port.DeliveryBreakdown, error) {
	byDay, err := r.breakdownBy(ctx, buyID, window, "to_char(date, 'YYYY-MM-DD')")
	if err != nil {
		return nil, err
	}
	byDevice, err := r.breakdownBy(ctx, buyID, window, "COALESCE(device_type, 'unknown')")
	if err != nil {
		return nil, err
	}
	byGeo, err := r.breakdownBy(ctx, buyID, window, "COALESCE(geo, 'unknown')")
	if err != nil {
		return nil, err
	}
	return &port.DeliveryBreakdown{ByDay: byDay, ByDevice: byDevice, ByGeo: byGeo}, nil
}

func (r *MediaBuyRepository) breakdownBy(ctx context.Context, buyID string, window port.Window, dimension string) ([]port.BreakdownRow, error) {
	query := `SELECT ` + dimension + ` AS dim,
		COALESCE(SUM(impressions), 0), COALESCE(SUM(clicks), 0),
		COALESCE(SUM(conversions), 0), COALESCE(SUM(spend), 0)
		FROM delivery_metrics WHERE media_buy_id = $1`
	args := []any{buyID}
	query, args = appendWindow(query, args, window)
	query += " GROUP BY dim ORDER BY dim"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (port.BreakdownRow, error) {
		var b port.BreakdownRow
		err := row.Scan(&b.Key, &b.Impressions, &b.Clicks, &b.Conversions, &b.Spend.Amount)
		return b, err
	})
}

// RefreshDeliveryCache writes fresh totals into the cached counters on the
// buy row. Lifecycle columns are untouched.
func (r *MediaBuyRepository) RefreshDeliveryCache(ctx context.Context, buyID string, totals domain.DeliveryTotals) error {
	_, err := r.pool.Exec(ctx, `UPDATE media_buys SET cached_impressions = $1,
		cached_clicks = $2, cached_conversions = $3, cached_spend = $4
		WHERE id = $5`,
		totals.Impressions, totals.Clicks, totals.Conversions, totals.Spend.Amount, buyID)
	return err
}

func appendWindow(query string, args []any, window port.Window) (string, []any) {
	if !window.From.IsZero() {
		args = append(args, window.From)
		query += " AND date >= $" + strconv.Itoa(len(args))
	}
	if !window.To.IsZero() {
		args = append(args, window.To)
		query += " AND date <= $" + strconv.Itoa(len(args))
	}
	return query, args
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
