package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"adcp-engine/internal/config/configs"
	"adcp-engine/internal/core/domain"
	"adcp-engine/internal/core/port"
	"adcp-engine/internal/metrics"
)

// MediaBuyUseCase owns the media-buy lifecycle. It is the only component
// that persists campaign state, and every state-changing call it makes goes
// through the audit recorder before the operation is considered finished.
type MediaBuyUseCase struct {
	repo     port.MediaBuyRepository
	catalog  port.CatalogAccessor
	audience port.AudienceAccessor
	audit    port.AuditRecorder

	validator  *Validator
	pricer     PriceResolver
	aggregator *MetricsAggregator
	formats    []port.FormatSpec
	cfg        configs.Engine
	logger     *slog.Logger

	// now is swappable in tests for deterministic pacing and deadlines.
	now func() time.Time
}

// NewMediaBuyUseCase wires the engine components together.
func NewMediaBuyUseCase(
	repo port.MediaBuyRepository,
	catalog port.CatalogAccessor,
	audience port.AudienceAccessor,
	audit port.AuditRecorder,
	cfg configs.Engine,
	logger *slog.Logger,
) *MediaBuyUseCase {
	return &MediaBuyUseCase{
		repo:       repo,
		catalog:    catalog,
		audience:   audience,
		audit:      audit,
		validator:  NewValidator(catalog),
		aggregator: NewMetricsAggregator(repo, cfg.PacingTolerance),
		formats:    FormatCatalog(cfg.FormatAgentURL),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateMediaBuy validates the request, prices every package for the
// principal, and persists the buy with its packages as one atomic unit in
// pending_creative. On validation failure nothing is persisted; the failed
// attempt is still audited with its complete violation list.
func (u *MediaBuyUseCase) CreateMediaBuy(ctx context.Context, principal domain.Principal, req port.CreateMediaBuyReq) (*port.MediaBuySummary, error) {
	violations, products, err := u.validator.ValidateCreate(ctx, principal, req)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		metrics.ValidationFailures.Inc()
		verr := &domain.ViolationError{Violations: violations}
		if err := u.recordAudit(ctx, principal, "create_media_buy", domain.AuditFailed, map[string]any{
			"buyer_ref":  req.BuyerRef,
			"violations": violations,
		}); err != nil {
			return nil, err
		}
		return nil, verr
	}

	now := u.now().UTC()
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	buy := &domain.MediaBuy{
		ID:               uuid.NewString(),
		TenantID:         principal.TenantID,
		MediaBuyID:       fmt.Sprintf("mb_%s_%s", now.Format("20060102"), uuid.NewString()[:8]),
		PrincipalID:      principal.ID,
		BuyerRef:         req.BuyerRef,
		TotalBudget:      domain.Money{Currency: currency},
		FlightStart:      req.FlightStart,
		FlightEnd:        req.FlightEnd,
		Status:           domain.StatusPendingCreative,
		CreativeDeadline: req.FlightStart.Add(-u.cfg.CreativeDeadlineOffset),
		Delivery:         domain.DeliveryTotals{Spend: domain.Money{Currency: currency}},
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for i, in := range req.Packages {
		product := products[in.ProductID]
		pacing, _ := domain.ParsePacing(in.Pacing)
		refs := make([]domain.FormatRef, len(in.Formats))
		for fi, f := range in.Formats {
			refs[fi] = domain.FormatRef{AgentURL: f.AgentURL, ID: f.ID}
		}
		buy.Packages = append(buy.Packages, domain.Package{
			ID:              uuid.NewString(),
			PackageID:       fmt.Sprintf("pkg_%d", i+1),
			BuyerRef:        in.BuyerRef,
			ProductID:       in.ProductID,
			Budget:          domain.Money{Amount: in.Budget, Currency: currency},
			PricingOptionID: in.PricingOptionID,
			Pacing:          pacing,
			Formats:         refs,
			Targeting:       in.Targeting,
			Price:           u.pricer.Resolve(product, principal),
			Status:          domain.StatusPendingCreative,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	buy.TotalBudget = buy.SumPackageBudgets()

	audienceID, err := u.resolveAudience(ctx, req, products)
	if err != nil {
		return nil, err
	}
	buy.AudienceID = audienceID

	buy.Workflow = map[string]any{
		"created_by":        principal.PrincipalID,
		"requires_approval": buy.TotalBudget.Amount > u.cfg.ApprovalThreshold,
	}

	if err := u.repo.CreateMediaBuy(ctx, buy); err != nil {
		return nil, fmt.Errorf("persist media buy: %w", err)
	}
	if err := u.recordAudit(ctx, principal, "create_media_buy", domain.AuditSuccess, map[string]any{
		"media_buy_id": buy.MediaBuyID,
		"buyer_ref":    buy.BuyerRef,
		"total_budget": buy.TotalBudget,
		"packages":     len(buy.Packages),
	}); err != nil {
		return nil, err
	}
	metrics.MediaBuysCreated.Inc()

	return &port.MediaBuySummary{
		MediaBuyID:       buy.MediaBuyID,
		Status:           buy.Status,
		TotalBudget:      buy.TotalBudget,
		FlightStart:      buy.FlightStart,
		FlightEnd:        buy.FlightEnd,
		CreativeDeadline: buy.CreativeDeadline,
		PackageCount:     len(buy.Packages),
		Workflow:         buy.Workflow,
		CreatedAt:        buy.CreatedAt,
	}, nil
}

// GetMediaBuy returns the buy with its packages. Read-only, any state.
func (u *MediaBuyUseCase) GetMediaBuy(ctx context.Context, principal domain.Principal, mediaBuyID string) (*domain.MediaBuy, error) {
	return u.repo.GetMediaBuy(ctx, mediaBuyID, principal.ID)
}

// UpdateMediaBuy applies a partial field set under the per-buy lock,
// revalidating only the fields being changed.
func (u *MediaBuyUseCase) UpdateMediaBuy(ctx context.Context, principal domain.Principal, mediaBuyID string, req port.UpdateMediaBuyReq) (*domain.MediaBuy, error) {
	return u.update(ctx, principal, mediaBuyID, "update_media_buy", req)
}

// CancelMediaBuy moves the buy to cancelled. Legal only from
// pending_creative or active; history is preserved, nothing is deleted.
func (u *MediaBuyUseCase) CancelMediaBuy(ctx context.Context, principal domain.Principal, mediaBuyID string) (*domain.MediaBuy, error) {
	status := string(domain.StatusCancelled)
	return u.update(ctx, principal, mediaBuyID, "cancel_media_buy", port.UpdateMediaBuyReq{Status: &status})
}

// GetDelivery reports aggregated delivery and pacing health for the buy.
func (u *MediaBuyUseCase) GetDelivery(ctx context.Context, principal domain.Principal, mediaBuyID string) (*port.DeliverySummary, error) {
	return u.aggregator.Delivery(ctx, principal, mediaBuyID)
}

// GetReport breaks delivery down by day, device and geo over a date range.
func (u *MediaBuyUseCase) GetReport(ctx context.Context, principal domain.Principal, mediaBuyID string, dateRange string) (*port.DeliveryReport, error) {
	return u.aggregator.Report(ctx, principal, mediaBuyID, dateRange)
}

// ListCreativeFormats returns the static format catalog.
func (u *MediaBuyUseCase) ListCreativeFormats() []port.FormatSpec {
	return u.formats
}

func (u *MediaBuyUseCase) update(ctx context.Context, principal domain.Principal, mediaBuyID, operation string, req port.UpdateMediaBuyReq) (*domain.MediaBuy, error) {
	products, err := u.productsForBudgetChecks(ctx, principal, mediaBuyID, req)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	updated, err := u.repo.UpdateMediaBuy(ctx, mediaBuyID, principal.ID, func(buy *domain.MediaBuy) error {
		return u.applyUpdate(buy, req, products, changes)
	})
	if err != nil {
		var terr *domain.TransitionError
		var verr *domain.ViolationError
		switch {
		case errors.As(err, &terr):
			metrics.IllegalTransitions.Inc()
		case errors.As(err, &verr):
			metrics.ValidationFailures.Inc()
		default:
			return nil, err
		}
		if aerr := u.recordAudit(ctx, principal, operation, domain.AuditFailed, map[string]any{
			"media_buy_id": mediaBuyID,
			"error":        err.Error(),
		}); aerr != nil {
			return nil, aerr
		}
		return nil, err
	}

	if err := u.recordAudit(ctx, principal, operation, domain.AuditSuccess, map[string]any{
		"media_buy_id": mediaBuyID,
		"changes":      changes,
	}); err != nil {
		return nil, err
	}
	metrics.MediaBuysUpdated.WithLabelValues(operation).Inc()
	return updated, nil
}

// productsForBudgetChecks batches the catalog lookups needed to recheck the
// minimum-spend invariant for packages whose budget is changing. Product
// references on packages are immutable, so reading them outside the update
// lock is race-free.
func (u *MediaBuyUseCase) productsForBudgetChecks(ctx context.Context, principal domain.Principal, mediaBuyID string, req port.UpdateMediaBuyReq) (map[string]domain.Product, error) {
	needed := map[string]struct{}{}
	for _, pu := range req.Packages {
		if pu.Budget != nil {
			needed[pu.PackageID] = struct{}{}
		}
	}
	if len(needed) == 0 {
		return nil, nil
	}
	buy, err := u.repo.GetMediaBuy(ctx, mediaBuyID, principal.ID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, p := range buy.Packages {
		if _, ok := needed[p.PackageID]; ok {
			ids = append(ids, p.ProductID)
		}
	}
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}
	products, err := u.catalog.GetProducts(ctx, principal.TenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	return products, nil
}

// applyUpdate mutates the locked buy in place. A requested status change is
// checked first: an illegal transition rejects the whole update regardless
// of which other fields are present. Field-level problems are collected into
// one violation list, and any error leaves the buy unpersisted.
func (u *MediaBuyUseCase) applyUpdate(buy *domain.MediaBuy, req port.UpdateMediaBuyReq, products map[string]domain.Product, changes map[string]any) error {
	var violations []domain.Violation

	if req.Status != nil {
		next, err := domain.ParseStatus(*req.Status)
		if err != nil {
			return &domain.ViolationError{Violations: []domain.Violation{{
				Code:    domain.ViolationInvalidStatus,
				Field:   "status",
				Message: fmt.Sprintf("status %q is not a known lifecycle state", *req.Status),
			}}}
		}
		if !buy.Status.CanTransition(next) {
			return &domain.TransitionError{From: buy.Status, To: next}
		}
		changes["status"] = map[string]any{"old": buy.Status, "new": next}
		buy.Status = next
		for i := range buy.Packages {
			if !buy.Packages[i].Status.Terminal() {
				buy.Packages[i].Status = next
			}
		}
	}

	start, end := buy.FlightStart, buy.FlightEnd
	if req.FlightStart != nil {
		start = *req.FlightStart
	}
	if req.FlightEnd != nil {
		end = *req.FlightEnd
	}
	if end.Before(start) {
		violations = append(violations, domain.Violation{
			Code:    domain.ViolationInvalidFlightDates,
			Field:   "flight_end_date",
			Message: fmt.Sprintf("flight end date %s precedes start date %s", end.Format(time.DateOnly), start.Format(time.DateOnly)),
		})
	} else {
		if req.FlightStart != nil && !start.Equal(buy.FlightStart) {
			changes["flight_start_date"] = map[string]any{"old": buy.FlightStart, "new": start}
			buy.FlightStart = start
			buy.CreativeDeadline = start.Add(-u.cfg.CreativeDeadlineOffset)
		}
		if req.FlightEnd != nil && !end.Equal(buy.FlightEnd) {
			changes["flight_end_date"] = map[string]any{"old": buy.FlightEnd, "new": end}
			buy.FlightEnd = end
		}
	}

	for _, pu := range req.Packages {
		pkg := findPackage(buy, pu.PackageID)
		if pkg == nil {
			violations = append(violations, domain.Violation{
				Code:    domain.ViolationUnknownPackage,
				Field:   "package_id",
				Message: fmt.Sprintf("package %q does not exist in this media buy", pu.PackageID),
			})
			continue
		}
		if pu.Budget != nil {
			violations = append(violations, u.applyBudgetChange(pkg, *pu.Budget, products, changes)...)
		}
		if pu.Pacing != nil {
			pacing, err := domain.ParsePacing(*pu.Pacing)
			if err != nil {
				violations = append(violations, domain.Violation{
					Code:    domain.ViolationInvalidPacing,
					Field:   "pacing",
					Message: fmt.Sprintf("package %s: pacing %q is not one of even, asap, front_loaded", pkg.PackageID, *pu.Pacing),
				})
			} else if pacing != pkg.Pacing {
				changes[pkg.PackageID+".pacing"] = map[string]any{"old": pkg.Pacing, "new": pacing}
				pkg.Pacing = pacing
			}
		}
		if pu.Targeting != nil {
			changes[pkg.PackageID+".targeting_overlay"] = map[string]any{"old": pkg.Targeting, "new": pu.Targeting}
			pkg.Targeting = pu.Targeting
		}
	}

	if len(violations) > 0 {
		return &domain.ViolationError{Violations: violations}
	}

	buy.TotalBudget = buy.SumPackageBudgets()
	now := u.now().UTC()
	buy.UpdatedAt = now
	for i := range buy.Packages {
		buy.Packages[i].UpdatedAt = now
	}
	buy.Version++
	return nil
}

func (u *MediaBuyUseCase) applyBudgetChange(pkg *domain.Package, amount int64, products map[string]domain.Product, changes map[string]any) []domain.Violation {
	if amount <= 0 {
		return []domain.Violation{{
			Code:    domain.ViolationInvalidBudget,
			Field:   "budget",
			Message: fmt.Sprintf("package %s: budget must be a positive amount", pkg.PackageID),
		}}
	}
	product, ok := products[pkg.ProductID]
	if !ok {
		return []domain.Violation{{
			Code:    domain.ViolationUnknownProduct,
			Field:   "product_id",
			Message: fmt.Sprintf("package %s: product %q does not exist for this tenant", pkg.PackageID, pkg.ProductID),
		}}
	}
	if amount < product.MinimumSpend.Amount {
		return []domain.Violation{{
			Code:  domain.ViolationBelowMinimumSpend,
			Field: "budget",
			Message: fmt.Sprintf("package %s: budget %s is below the product minimum spend %s",
				pkg.PackageID,
				domain.Money{Amount: amount, Currency: pkg.Budget.Currency},
				product.MinimumSpend),
		}}
	}
	old := pkg.Budget
	pkg.Budget = domain.Money{Amount: amount, Currency: pkg.Budget.Currency}
	changes[pkg.PackageID+".budget"] = map[string]any{"old": old, "new": pkg.Budget}
	return nil
}

func findPackage(buy *domain.MediaBuy, packageID string) *domain.Package {
	for i := range buy.Packages {
		if buy.Packages[i].PackageID == packageID {
			return &buy.Packages[i]
		}
	}
	return nil
}

// resolveAudience attaches the first servable matched audience referenced by
// the products of the buy, in package order. Absence is not an error: the
// accessor filters records below their own k-anonymity floor, and the
// engine-wide floor from configuration applies on top of it here.
func (u *MediaBuyUseCase) resolveAudience(ctx context.Context, req port.CreateMediaBuyReq, products map[string]domain.Product) (string, error) {
	var segmentIDs []string
	for _, in := range req.Packages {
		product, ok := products[in.ProductID]
		if !ok {
			continue
		}
		segmentIDs = append(segmentIDs, product.MatchedAudienceIDs...)
	}
	if len(segmentIDs) == 0 {
		u.logger.Debug("no matched audiences referenced by products",
			slog.String("buyer_ref", req.BuyerRef))
		return "", nil
	}
	audiences, err := u.audience.GetAudiences(ctx, segmentIDs)
	if err != nil {
		return "", fmt.Errorf("audience lookup: %w", err)
	}
	for _, sid := range segmentIDs {
		a, ok := audiences[sid]
		if !ok {
			continue
		}
		if a.OverlapCount < u.cfg.KAnonymityFloor {
			continue
		}
		return a.SegmentID, nil
	}
	u.logger.Info("no servable matched audience for buy",
		slog.String("buyer_ref", req.BuyerRef),
		slog.Int("candidate_segments", len(segmentIDs)))
	return "", nil
}

func (u *MediaBuyUseCase) recordAudit(ctx context.Context, principal domain.Principal, operation, status string, summary map[string]any) error {
	entry := domain.AuditEntry{
		ID:          uuid.NewString(),
		PrincipalID: principal.ID,
		TenantID:    principal.TenantID,
		Operation:   operation,
		Summary:     summary,
		Status:      status,
		Timestamp:   u.now().UTC(),
	}
	if err := u.audit.Record(ctx, entry); err != nil {
		return fmt.Errorf("audit record: %w", err)
	}
	metrics.AuditEntriesWritten.Inc()
	return nil
}
