package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Violation codes. A code identifies the rule that failed, independent of
// the human-readable message.
const (
	ViolationMissingField       = "missing_field"
	ViolationEmptyPackages      = "empty_packages"
	ViolationEmptyFormats       = "empty_formats"
	ViolationInvalidFormatRef   = "invalid_format_ref"
	ViolationInvalidPacing      = "invalid_pacing"
	ViolationInvalidBudget      = "invalid_budget"
	ViolationBelowMinimumSpend  = "below_minimum_spend"
	ViolationUnknownProduct     = "unknown_product"
	ViolationInactiveProduct    = "inactive_product"
	ViolationInvalidFlightDates = "invalid_flight_dates"
	ViolationInvalidStatus      = "invalid_status"
	ViolationUnknownPackage     = "unknown_package"
	ViolationInvalidDateRange   = "invalid_date_range"
)

// Violation is one compliance failure in a media-buy request. PackageIndex
// is 1-based and zero for buy-level violations.
type Violation struct {
	Code         string `json:"code"`
	Field        string `json:"field,omitempty"`
	PackageIndex int    `json:"package_index,omitempty"`
	Message      string `json:"message"`
}

func (v Violation) String() string {
	if v.PackageIndex > 0 {
		return fmt.Sprintf("package %d: %s", v.PackageIndex, v.Message)
	}
	return v.Message
}

// ViolationError carries the complete list of violations found in a request.
// It is a caller error: resubmitting a corrected request is the only remedy,
// automatic retries will not change the outcome.
type ViolationError struct {
	Violations []Violation
}

func (e *ViolationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// AsViolationError unwraps err into a *ViolationError if it is one.
func AsViolationError(err error) (*ViolationError, bool) {
	var ve *ViolationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// TransitionError reports a lifecycle transition that is not permitted from
// the buy's current state. Like validation failures it is a caller error and
// must never be retried automatically.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

// Sentinel errors shared across adapters.
var (
	ErrMediaBuyNotFound  = errors.New("media buy not found")
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrAudienceNotFound  = errors.New("matched audience not found")
)
