package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"adcp-engine/internal/core/domain"
	"adcp-engine/internal/core/port"
)

// createMediaBuyRequest is the wire form of a create call. Flight dates are
// date-only strings; RFC 3339 timestamps are also accepted.
type createMediaBuyRequest struct {
	BuyerRef    string              `json:"buyer_ref"`
	Currency    string              `json:"currency"`
	Packages    []port.PackageInput `json:"packages"`
	FlightStart string              `json:"flight_start_date"`
	FlightEnd   string              `json:"flight_end_date"`
}

type updateMediaBuyRequest struct {
	Packages    []port.PackageUpdate `json:"packages,omitempty"`
	FlightStart *string              `json:"flight_start_date,omitempty"`
	FlightEnd   *string              `json:"flight_end_date,omitempty"`
	Status      *string              `json:"status,omitempty"`
}

// handleCreateMediaBuy validates and creates a media buy. A compliant
// request returns HTTP 201 with the buy summary; a non-compliant one
// returns HTTP 422 with the complete violation list and persists nothing.
func (h *Handler) handleCreateMediaBuy(w http.ResponseWriter, r *http.Request) {
	var req createMediaBuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	start, err := parseDate(req.FlightStart)
	if err != nil {
		http.Error(w, "invalid flight_start_date", http.StatusBadRequest)
		return
	}
	end, err := parseDate(req.FlightEnd)
	if err != nil {
		http.Error(w, "invalid flight_end_date", http.StatusBadRequest)
		return
	}

	summary, err := h.svc.CreateMediaBuy(r.Context(), principalFrom(r.Context()), port.CreateMediaBuyReq{
		BuyerRef:    req.BuyerRef,
		Currency:    req.Currency,
		Packages:    req.Packages,
		FlightStart: start,
		FlightEnd:   end,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, summary)
}

// handleGetMediaBuy returns the buy configuration with its packages.
func (h *Handler) handleGetMediaBuy(w http.ResponseWriter, r *http.Request) {
	buy, err := h.svc.GetMediaBuy(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "mediaBuyID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDetail(buy))
}

// handleUpdateMediaBuy applies a partial field set to the buy.
func (h *Handler) handleUpdateMediaBuy(w http.ResponseWriter, r *http.Request) {
	var req updateMediaBuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	update := port.UpdateMediaBuyReq{Packages: req.Packages, Status: req.Status}
	if req.FlightStart != nil {
		t, err := parseDate(*req.FlightStart)
		if err != nil {
			http.Error(w, "invalid flight_start_date", http.StatusBadRequest)
			return
		}
		update.FlightStart = &t
	}
	if req.FlightEnd != nil {
		t, err := parseDate(*req.FlightEnd)
		if err != nil {
			http.Error(w, "invalid flight_end_date", http.StatusBadRequest)
			return
		}
		update.FlightEnd = &t
	}

	buy, err := h.svc.UpdateMediaBuy(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "mediaBuyID"), update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDetail(buy))
}

// handleCancelMediaBuy cancels the buy. Legal only from pending_creative or
// active; other states return HTTP 409.
func (h *Handler) handleCancelMediaBuy(w http.ResponseWriter, r *http.Request) {
	buy, err := h.svc.CancelMediaBuy(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "mediaBuyID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDetail(buy))
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// mediaBuyDetail is the wire form of a buy with its packages.
type mediaBuyDetail struct {
	MediaBuyID       string                `json:"media_buy_id"`
	BuyerRef         string                `json:"buyer_ref"`
	Status           domain.Status         `json:"status"`
	TotalBudget      domain.Money          `json:"total_budget"`
	FlightStart      time.Time             `json:"flight_start_date"`
	FlightEnd        time.Time             `json:"flight_end_date"`
	CreativeDeadline time.Time             `json:"creative_deadline"`
	Workflow         map[string]any        `json:"workflow,omitempty"`
	AudienceID       string                `json:"matched_audience_id,omitempty"`
	Delivery         domain.DeliveryTotals `json:"delivery"`
	Packages         []packageDetail       `json:"packages"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

type packageDetail struct {
	PackageID       string                `json:"package_id"`
	BuyerRef        string                `json:"buyer_ref"`
	ProductID       string                `json:"product_id"`
	Budget          domain.Money          `json:"budget"`
	PricingOptionID string                `json:"pricing_option_id"`
	Pacing          domain.Pacing         `json:"pacing"`
	Formats         []domain.FormatRef    `json:"format_ids"`
	Targeting       domain.Targeting      `json:"targeting_overlay,omitempty"`
	Price           domain.EffectivePrice `json:"effective_price"`
	Status          domain.Status         `json:"status"`
}

func toDetail(buy *domain.MediaBuy) mediaBuyDetail {
	detail := mediaBuyDetail{
		MediaBuyID:       buy.MediaBuyID,
		BuyerRef:         buy.BuyerRef,
		Status:           buy.Status,
		TotalBudget:      buy.TotalBudget,
		FlightStart:      buy.FlightStart,
		FlightEnd:        buy.FlightEnd,
		CreativeDeadline: buy.CreativeDeadline,
		Workflow:         buy.Workflow,
		AudienceID:       buy.AudienceID,
		Delivery:         buy.Delivery,
		CreatedAt:        buy.CreatedAt,
		UpdatedAt:        buy.UpdatedAt,
	}
	for _, pkg := range buy.Packages {
		detail.Packages = append(detail.Packages, packageDetail{
			PackageID:       pkg.PackageID,
			BuyerRef:        pkg.BuyerRef,
			ProductID:       pkg.ProductID,
			Budget:          pkg.Budget,
			PricingOptionID: pkg.PricingOptionID,
			Pacing:          pkg.Pacing,
			Formats:         pkg.Formats,
			Targeting:       pkg.Targeting,
			Price:           pkg.Price,
			Status:          pkg.Status,
		})
	}
	return detail
}
