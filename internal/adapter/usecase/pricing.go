package usecase

import (
	"math"

	"adcp-engine/internal/core/domain"
)

// PriceResolver computes the principal-specific effective price from a
// product's base price and the access-tier discount table. It is stateless,
// deterministic and safe for concurrent use.
type PriceResolver struct{}

// Resolve applies the tier discount to the product's base price. The final
// amount is rounded to minor-unit precision with round-half-to-even so the
// rounding carries no systematic bias across packages.
func (PriceResolver) Resolve(product domain.Product, principal domain.Principal) domain.EffectivePrice {
	discount := principal.AccessTier.DiscountFraction()
	base := product.BasePrice.Value
	final := int64(math.RoundToEven(float64(base.Amount) * (1 - discount)))
	return domain.EffectivePrice{
		Base:             product.BasePrice,
		DiscountFraction: discount,
		Final:            domain.Money{Amount: final, Currency: base.Currency},
	}
}
