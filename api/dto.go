/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - Money rendered as fixed two-decimal strings
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Resources:
    ResourceDTO, CreateResourceRequest, SetActiveRequest

  Reservations:
    ReservationDTO, CreateReservationRequest, StatusRequest, PaymentRequest

  Availability:
    SlotDTO, DayAvailabilityDTO, RangeAvailabilityDTO

  Rewards:
    AccountDTO, EntryDTO, SummaryDTO, PostEntryRequest, SweepDTO

VALIDATION:
  Validation is done in handlers and the domain, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: ConfigDocument / PatchDocument for reward config
*/
package api

import (
	"time"

	"github.com/warp/studio-engine/booking"
	"github.com/warp/studio-engine/generic"
	"github.com/warp/studio-engine/rewards"
)

// =============================================================================
// RESOURCES
// =============================================================================

// ResourceDTO represents a room or item in API responses.
type ResourceDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Rate        string `json:"rate"`
	Granularity string `json:"granularity"`
	Capacity    int    `json:"capacity,omitempty"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateResourceRequest is the request to register a resource.
type CreateResourceRequest struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Rate     string `json:"rate"`
	Capacity int    `json:"capacity"`
	Active   *bool  `json:"active"`
}

// SetActiveRequest toggles a resource's availability.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

func toResourceDTO(r generic.Resource) ResourceDTO {
	return ResourceDTO{
		ID:          string(r.ID),
		Kind:        r.Kind.KindID(),
		Name:        r.Name,
		Rate:        r.Rate.String(),
		Granularity: r.Rule().Granularity.String(),
		Capacity:    r.Capacity,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// RESERVATIONS
// =============================================================================

// ReservationDTO represents a reservation in API responses.
type ReservationDTO struct {
	ID              string  `json:"id"`
	ResourceID      string  `json:"resource_id"`
	Kind            string  `json:"kind"`
	RequesterID     string  `json:"requester_id"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	Units           int     `json:"units"`
	Status          string  `json:"status"`
	PaymentStatus   string  `json:"payment_status"`
	Price           string  `json:"price"`
	CancellationFee *string `json:"cancellation_fee,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	CancelReason    string  `json:"cancel_reason,omitempty"`
	CancelledBy     string  `json:"cancelled_by,omitempty"`
	CancelledAt     string  `json:"cancelled_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// CreateReservationRequest books a room or rents an item. Start and End are
// RFC3339 for rooms; items also accept YYYY-MM-DD.
type CreateReservationRequest struct {
	ResourceID string `json:"resource_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Notes      string `json:"notes"`
}

// StatusRequest moves a reservation through its lifecycle.
type StatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// CancelRequest carries an optional reason.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// PaymentRequest updates the payment status (admin only).
type PaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
}

// FeeQuoteDTO previews what cancelling now would cost.
type FeeQuoteDTO struct {
	ReservationID string `json:"reservation_id"`
	Fee           string `json:"fee"`
	Late          bool   `json:"late"`
	AsOf          string `json:"as_of"`
}

func toReservationDTO(r generic.Reservation) ReservationDTO {
	dto := ReservationDTO{
		ID:            string(r.ID),
		ResourceID:    string(r.ResourceID),
		Kind:          r.Kind,
		RequesterID:   string(r.RequesterID),
		Start:         r.Period.Start.Time.Format(time.RFC3339),
		End:           r.Period.End.Time.Format(time.RFC3339),
		Units:         r.Units,
		Status:        string(r.Status),
		PaymentStatus: string(r.PaymentStatus),
		Price:         r.Price.String(),
		Notes:         r.Notes,
		CancelReason:  r.CancelReason,
		CancelledBy:   string(r.CancelledBy),
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
	}
	if r.CancellationFee != nil {
		fee := r.CancellationFee.String()
		dto.CancellationFee = &fee
	}
	if r.CancelledAt != nil {
		dto.CancelledAt = r.CancelledAt.Format(time.RFC3339)
	}
	return dto
}

func toReservationDTOs(list []generic.Reservation) []ReservationDTO {
	dtos := make([]ReservationDTO, len(list))
	for i, r := range list {
		dtos[i] = toReservationDTO(r)
	}
	return dtos
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// SlotDTO is one cell of an availability grid.
type SlotDTO struct {
	Start         string `json:"start"`
	Available     bool   `json:"available"`
	ReservationID string `json:"reservation_id,omitempty"`
}

// DayAvailabilityDTO is the room day view.
type DayAvailabilityDTO struct {
	ResourceID string    `json:"resource_id"`
	Date       string    `json:"date"`
	Slots      []SlotDTO `json:"slots"`
}

// RangeAvailabilityDTO is the item range view.
type RangeAvailabilityDTO struct {
	ResourceID  string           `json:"resource_id"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	IsAvailable bool             `json:"is_available"`
	Slots       []SlotDTO        `json:"slots"`
	Overlapping []ReservationDTO `json:"overlapping"`
}

func toSlotDTOs(slots []generic.Slot) []SlotDTO {
	dtos := make([]SlotDTO, len(slots))
	for i, s := range slots {
		dtos[i] = SlotDTO{
			Start:         s.Start.Time.Format(time.RFC3339),
			Available:     s.Available,
			ReservationID: string(s.ReservationID),
		}
	}
	return dtos
}

func toDayAvailabilityDTO(v *booking.DayView) DayAvailabilityDTO {
	return DayAvailabilityDTO{
		ResourceID: string(v.ResourceID),
		Date:       v.Date.Time.Format("2006-01-02"),
		Slots:      toSlotDTOs(v.Slots),
	}
}

func toRangeAvailabilityDTO(v *booking.RangeView) RangeAvailabilityDTO {
	return RangeAvailabilityDTO{
		ResourceID:  string(v.ResourceID),
		From:        v.Period.Start.Time.Format("2006-01-02"),
		To:          v.Period.End.Time.Format("2006-01-02"),
		IsAvailable: v.IsAvailable,
		Slots:       toSlotDTOs(v.Slots),
		Overlapping: toReservationDTOs(v.Overlapping),
	}
}

// =============================================================================
// REWARDS
// =============================================================================

// AccountDTO is the stored account state.
type AccountDTO struct {
	ID            string `json:"id"`
	Points        int64  `json:"points"`
	Tier          string `json:"tier"`
	ConfigVersion int    `json:"config_version"`
	UpdatedAt     string `json:"updated_at"`
}

// EntryDTO is one ledger entry.
type EntryDTO struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Expired     bool   `json:"expired"`
}

// SummaryDTO is the rewards page of one account.
type SummaryDTO struct {
	Account  AccountDTO            `json:"account"`
	Discount string                `json:"discount"`
	Recent   []EntryDTO            `json:"recent"`
	NextTier *rewards.NextTierInfo `json:"next_tier"`
}

// PostEntryRequest posts points directly (admin). Either Amount or Spend is
// used: Spend converts through the configured point values.
type PostEntryRequest struct {
	AccountID   string `json:"account_id"`
	Amount      *int64 `json:"amount"`
	Spend       string `json:"spend"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ReferenceID string `json:"reference_id"`
}

// ConfigUpdateDTO is returned after a reward config update.
type ConfigUpdateDTO struct {
	Version      int `json:"version"`
	Reclassified int `json:"reclassified"`
}

// SweepDTO reports one expiry sweep.
type SweepDTO struct {
	StartedAt       string `json:"started_at"`
	Trigger         string `json:"trigger"`
	Accounts        int    `json:"accounts"`
	EntriesExcluded int    `json:"entries_excluded"`
	DurationMillis  int64  `json:"duration_ms"`
	Error           string `json:"error,omitempty"`
}

func toAccountDTO(a generic.Account) AccountDTO {
	return AccountDTO{
		ID:            string(a.ID),
		Points:        a.Total,
		Tier:          a.Tier,
		ConfigVersion: a.ConfigVersion,
		UpdatedAt:     a.UpdatedAt.Format(time.RFC3339),
	}
}

func toEntryDTOs(entries []generic.Entry, now time.Time) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = EntryDTO{
			ID:          string(e.ID),
			Amount:      e.Amount,
			Category:    string(e.Category),
			Description: e.Description,
			ReferenceID: e.ReferenceID,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
			Expired:     !e.Included(now),
		}
		if e.ExpiresAt != nil {
			dtos[i].ExpiresAt = e.ExpiresAt.Format(time.RFC3339)
		}
	}
	return dtos
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Code      string   `json:"code,omitempty"`
	Details   string   `json:"details,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}
