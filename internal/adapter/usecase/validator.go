package usecase

import (
	"context"
	"fmt"
	"time"

	"adcp-engine/internal/core/domain"
	"adcp-engine/internal/core/port"
)

// Validator checks a proposed media buy against the compliance contract. All
// rules are evaluated exhaustively so a caller sees every problem in one
// round trip; the first failure never short-circuits the rest.
type Validator struct {
	catalog port.CatalogAccessor
}

// NewValidator creates a validator backed by the given catalog accessor.
func NewValidator(catalog port.CatalogAccessor) *Validator {
	return &Validator{catalog: catalog}
}

// ValidateCreate runs the full rule set against a create request. It returns
// the complete violation list (empty when the request is compliant) together
// with the products it looked up, so the caller can price packages without a
// second catalog round trip. A non-nil error means a dependency failed and
// the validation pass is inconclusive; nothing may be persisted.
func (v *Validator) ValidateCreate(ctx context.Context, principal domain.Principal, req port.CreateMediaBuyReq) ([]domain.Violation, map[string]domain.Product, error) {
	var violations []domain.Violation

	if req.BuyerRef == "" {
		violations = append(violations, domain.Violation{
			Code:    domain.ViolationMissingField,
			Field:   "buyer_ref",
			Message: "missing required field buyer_ref",
		})
	}

	if req.FlightEnd.Before(req.FlightStart) {
		violations = append(violations, domain.Violation{
			Code:    domain.ViolationInvalidFlightDates,
			Field:   "flight_end_date",
			Message: fmt.Sprintf("flight end date %s precedes start date %s", req.FlightEnd.Format(time.DateOnly), req.FlightStart.Format(time.DateOnly)),
		})
	}

	if len(req.Packages) == 0 {
		violations = append(violations, domain.Violation{
			Code:    domain.ViolationEmptyPackages,
			Field:   "packages",
			Message: "packages must be a non-empty list",
		})
		return violations, nil, nil
	}

	productIDs := make([]string, 0, len(req.Packages))
	seen := make(map[string]struct{}, len(req.Packages))
	for i, pkg := range req.Packages {
		violations = append(violations, validatePackage(pkg, i+1)...)
		if pkg.ProductID != "" {
			if _, ok := seen[pkg.ProductID]; !ok {
				seen[pkg.ProductID] = struct{}{}
				productIDs = append(productIDs, pkg.ProductID)
			}
		}
	}

	products := map[string]domain.Product{}
	if len(productIDs) > 0 {
		var err error
		products, err = v.catalog.GetProducts(ctx, principal.TenantID, productIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog lookup: %w", err)
		}
	}

	for i, pkg := range req.Packages {
		violations = append(violations, validateAgainstProduct(pkg, i+1, products)...)
	}

	return violations, products, nil
}

// validatePackage checks the structural rules of one package. The returned
// violations carry the package's 1-based position.
func validatePackage(pkg port.PackageInput, idx int) []domain.Violation {
	var violations []domain.Violation
	missing := func(field string) {
		violations = append(violations, domain.Violation{
			Code:         domain.ViolationMissingField,
			Field:        field,
			PackageIndex: idx,
			Message:      fmt.Sprintf("missing required field %s", field),
		})
	}

	if pkg.BuyerRef == "" {
		missing("buyer_ref")
	}
	if pkg.ProductID == "" {
		missing("product_id")
	}
	if pkg.PricingOptionID == "" {
		missing("pricing_option_id")
	}

	if pkg.Budget <= 0 {
		violations = append(violations, domain.Violation{
			Code:         domain.ViolationInvalidBudget,
			Field:        "budget",
			PackageIndex: idx,
			Message:      "budget must be a positive amount",
		})
	}

	if pkg.Pacing == "" {
		missing("pacing")
	} else if _, err := domain.ParsePacing(pkg.Pacing); err != nil {
		violations = append(violations, domain.Violation{
			Code:         domain.ViolationInvalidPacing,
			Field:        "pacing",
			PackageIndex: idx,
			Message:      fmt.Sprintf("pacing %q is not one of even, asap, front_loaded", pkg.Pacing),
		})
	}

	if len(pkg.Formats) == 0 {
		violations = append(violations, domain.Violation{
			Code:         domain.ViolationEmptyFormats,
			Field:        "format_ids",
			PackageIndex: idx,
			Message:      "format_ids must be a non-empty list",
		})
	}
	for fi, f := range pkg.Formats {
		ref := domain.FormatRef{AgentURL: f.AgentURL, ID: f.ID}
		if !ref.Valid() {
			violations = append(violations, domain.Violation{
				Code:         domain.ViolationInvalidFormatRef,
				Field:        fmt.Sprintf("format_ids[%d]", fi),
				PackageIndex: idx,
				Message:      "format reference requires an id and an absolute agent_url",
			})
		}
	}
	return violations
}

// validateAgainstProduct checks the rules that need the referenced product:
// existence within the tenant, active flag, and the minimum-spend floor.
func validateAgainstProduct(pkg port.PackageInput, idx int, products map[string]domain.Product) []domain.Violation {
	if pkg.ProductID == "" {
		return nil
	}
	product, ok := products[pkg.ProductID]
	if !ok {
		return []domain.Violation{{
			Code:         domain.ViolationUnknownProduct,
			Field:        "product_id",
			PackageIndex: idx,
			Message:      fmt.Sprintf("product %q does not exist for this tenant", pkg.ProductID),
		}}
	}
	if !product.Active {
		return []domain.Violation{{
			Code:         domain.ViolationInactiveProduct,
			Field:        "product_id",
			PackageIndex: idx,
			Message:      fmt.Sprintf("product %q is not active", pkg.ProductID),
		}}
	}
	if pkg.Budget > 0 && pkg.Budget < product.MinimumSpend.Amount {
		return []domain.Violation{{
			Code:         domain.ViolationBelowMinimumSpend,
			Field:        "budget",
			PackageIndex: idx,
			Message: fmt.Sprintf("budget %s is below the product minimum spend %s",
				domain.Money{Amount: pkg.Budget, Currency: product.MinimumSpend.Currency},
				product.MinimumSpend),
		}}
	}
	return nil
}
