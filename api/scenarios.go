/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	studio data for demos. Each scenario registers rooms and instruments,
	and may add reservations and loyalty points that show specific features.

AVAILABLE SCENARIOS:

	studio-basics:   Two rooms and three instruments, nothing booked
	busy-week:       Basics plus a week of bookings, rentals and one late cancel
	loyalty-ladder:  One member per tier, just above each threshold

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed the default reward configuration
 3. Register resources through the engine
 4. Add reservations through the engine (same admission rules as the API)
 5. Post loyalty entries through the ledger service

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-week"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and helpers
  - rewards/policies.go: DefaultConfig
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/studio-engine/booking"
	"github.com/warp/studio-engine/generic"
	"github.com/warp/studio-engine/rewards"
)

// scenarioAdmin performs every scenario write.
var scenarioAdmin = generic.Admin("scenario-loader")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "studio-basics",
		Name:        "Studio Basics",
		Description: "Two rehearsal rooms and three rentable instruments, nothing booked",
		Category:    "booking",
	},
	{
		ID:          "busy-week",
		Name:        "Busy Week",
		Description: "Room bookings and instrument rentals across the coming week, one late cancellation",
		Category:    "booking",
	},
	{
		ID:          "loyalty-ladder",
		Name:        "Loyalty Ladder",
		Description: "One member in each tier, a few points above the threshold",
		Category:    "rewards",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario loads a predefined scenario (admin).
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsAdmin() {
		writeDomainError(w, generic.ErrUnauthorized)
		return
	}
	if h.resetter == nil {
		writeError(w, http.StatusNotImplemented, "Scenarios need a resettable store", nil)
		return
	}

	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "studio-basics":
		load = h.loadStudioBasicsScenario
	case "busy-week":
		load = h.loadBusyWeekScenario
	case "loyalty-ladder":
		load = h.loadLoyaltyLadderScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data and re-seeds the default reward config (admin).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsAdmin() {
		writeDomainError(w, generic.ErrUnauthorized)
		return
	}
	if h.resetter == nil {
		writeError(w, http.StatusNotImplemented, "Store cannot be reset", nil)
		return
	}
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	// Let in-flight accruals land before wiping.
	h.Wait()

	if err := h.resetter.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	_, err := h.Rewards.Seed(ctx, rewards.DefaultConfig())
	return err
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStudioBasicsScenario(ctx context.Context) error {
	resources := []booking.ResourceInput{
		{ID: "room-a", Kind: "room", Name: "Room A (drum kit)", Rate: generic.MustParseMoney("25.00"), Capacity: 5, Active: true},
		{ID: "room-b", Kind: "room", Name: "Room B (vocal booth)", Rate: generic.MustParseMoney("18.50"), Capacity: 2, Active: true},
		{ID: "strat", Kind: "item", Name: "Fender Stratocaster", Rate: generic.MustParseMoney("15.00"), Active: true},
		{ID: "p-bass", Kind: "item", Name: "Precision Bass", Rate: generic.MustParseMoney("12.00"), Active: true},
		{ID: "nord", Kind: "item", Name: "Nord Stage 3", Rate: generic.MustParseMoney("30.00"), Active: true},
	}
	for _, in := range resources {
		if _, err := h.Engine.AddResource(ctx, in, scenarioAdmin); err != nil {
			return fmt.Errorf("add %s: %w", in.ID, err)
		}
	}
	return nil
}

func (h *Handler) loadBusyWeekScenario(ctx context.Context) error {
	if err := h.loadStudioBasicsScenario(ctx); err != nil {
		return err
	}

	today := generic.StartOfDay(h.clock.Now()).Time
	hour := func(days, h int) time.Time { return today.AddDate(0, 0, days).Add(time.Duration(h) * time.Hour) }
	day := func(days int) time.Time { return today.AddDate(0, 0, days) }

	bookings := []booking.ReserveInput{
		{ResourceID: "room-a", RequesterID: "mia", Start: hour(1, 10), End: hour(1, 13), Notes: "band rehearsal"},
		{ResourceID: "room-a", RequesterID: "leo", Start: hour(1, 14), End: hour(1, 16)},
		{ResourceID: "room-b", RequesterID: "mia", Start: hour(2, 18), End: hour(2, 20), Notes: "vocal takes"},
		{ResourceID: "room-a", RequesterID: "sam", Start: hour(4, 9), End: hour(4, 12)},
		{ResourceID: "strat", RequesterID: "leo", Start: day(1), End: day(3)},
		{ResourceID: "nord", RequesterID: "sam", Start: day(5), End: day(5)},
	}

	var admitted []generic.Reservation
	for _, in := range bookings {
		res, err := h.Engine.Reserve(ctx, in)
		if err != nil {
			return fmt.Errorf("reserve %s for %s: %w", in.ResourceID, in.RequesterID, err)
		}
		admitted = append(admitted, *res)
		if _, err := h.Rewards.Accrue(ctx, rewards.AccrueInput{
			AccountID:   res.RequesterID,
			Category:    booking.AccrualCategory(res.Kind),
			Spend:       res.Price,
			Description: fmt.Sprintf("%s %s", res.Kind, res.ResourceID),
			ReferenceID: string(res.ID),
		}); err != nil {
			return err
		}
	}

	// Leo drops tomorrow's afternoon slot.
	late := admitted[1]
	cancelled, err := h.Engine.Cancel(ctx, late.ID, generic.Requester(late.RequesterID), "schedule clash")
	if err != nil {
		return err
	}
	if err := h.reverseAccrual(ctx, *cancelled); err != nil {
		return err
	}

	// Mia confirmed and paid the first session.
	if _, err := h.Engine.UpdateStatus(ctx, admitted[0].ID, generic.StatusConfirmed, scenarioAdmin, ""); err != nil {
		return err
	}
	_, err = h.Engine.UpdatePaymentStatus(ctx, admitted[0].ID, generic.PaymentPaid, scenarioAdmin)
	return err
}

func (h *Handler) loadLoyaltyLadderScenario(ctx context.Context) error {
	if err := h.loadStudioBasicsScenario(ctx); err != nil {
		return err
	}

	cfg, err := h.Rewards.Config(ctx)
	if err != nil {
		return err
	}
	for i, tier := range cfg.Tiers {
		account := generic.AccountID(fmt.Sprintf("member-%d", i+1))
		points := tier.Threshold + 7
		if _, _, err := h.Rewards.PostEntry(ctx, rewards.PostInput{
			AccountID:   account,
			Amount:      points,
			Category:    generic.CategoryPurchase,
			Description: fmt.Sprintf("opening balance (%s)", tier.Name),
		}); err != nil {
			return err
		}
	}

	// A referral on top of the Bronze member.
	_, err = h.Rewards.Accrue(ctx, rewards.AccrueInput{
		AccountID: "member-1",
		Category:  generic.CategoryReferral,
	})
	return err
}
