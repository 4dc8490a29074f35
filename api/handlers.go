/*
handlers.go - HTTP API handlers for the studio reservation engine

PURPOSE:
  Exposes the reservation engine and the loyalty ledger via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Resources:
    GET    /api/resources                       List rooms and items (?kind=)
    POST   /api/resources                       Register a resource (admin)
    GET    /api/resources/{id}                  Resource details
    PUT    /api/resources/{id}/active           Enable/disable (admin)
    GET    /api/resources/{id}/availability     Day view (?date=) or range view (?from=&to=)
    GET    /api/resources/{id}/reservations     Active + past reservations (admin)

  Reservations:
    POST   /api/reservations                    Book a room / rent an item
    GET    /api/reservations                    Admin list (?status=&payment_status=&kind=&resource_id=)
    GET    /api/reservations/mine               The caller's reservations
    GET    /api/reservations/{id}               One reservation (owner or admin)
    GET    /api/reservations/{id}/fee           Preview of the cancellation fee
    POST   /api/reservations/{id}/cancel        Cancel (owner or admin)
    PUT    /api/reservations/{id}/status        Lifecycle transition
    PUT    /api/reservations/{id}/payment       Payment transition (admin)

  Rewards:
    GET    /api/rewards/me                      Caller's summary
    GET    /api/rewards/me/history              Caller's ledger
    GET    /api/rewards/accounts/{id}           Summary of any account (admin)
    GET    /api/rewards/config                  Current reward configuration
    PUT    /api/admin/rewards/config            Partial config update (admin)
    POST   /api/admin/rewards/entries           Post points (admin)
    POST   /api/admin/rewards/sweep             Run the expiry sweeper now (admin)
    GET    /api/admin/rewards/sweeps            Recent sweep runs (admin)

IDENTITY:
  The caller is read from X-Actor-ID / X-Actor-Role headers by the actor
  middleware. Authentication happens in front of this service.

BACKGROUND WORK:
  After a reservation is admitted the handler posts the loyalty accrual and
  publishes a notification on a tracked goroutine, outside every lock and
  after the response is decided. Cancellations publish an event and post a
  reversal of the points the reservation earned. Wait() drains this work on
  shutdown.

ERROR HANDLING:
  Domain errors map to HTTP status via generic.Kind:
  - 400: invalid_range, invalid_input, invalid_config
  - 403: unauthorized
  - 404: not_found
  - 409: slot_unavailable, invalid_transition, already_cancelled, concurrent_modification
  - 422: resource_unavailable
  - 500: storage and anything unexpected

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Actor, logging, rate limiting
  - server.go: Router setup
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/studio-engine/booking"
	"github.com/warp/studio-engine/factory"
	"github.com/warp/studio-engine/generic"
	"github.com/warp/studio-engine/metrics"
	"github.com/warp/studio-engine/notify"
	"github.com/warp/studio-engine/rewards"
)

// backgroundTimeout bounds each accrual/notification job.
const backgroundTimeout = 10 * time.Second

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter wipes all data. Only the demo scenarios use it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Deps are the collaborators of a Handler.
type Deps struct {
	Engine    *booking.Engine
	Rewards   *rewards.Service
	Publisher notify.Publisher // nil means NopPublisher
	Scheduler *SweepScheduler  // nil means a scheduler that only runs on demand
	Resetter  Resetter         // nil disables scenario loading
	Clock     generic.Clock    // nil means system clock
	Logger    zerolog.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *booking.Engine
	Rewards   *rewards.Service
	Configs   *factory.ConfigFactory
	Publisher notify.Publisher
	Scheduler *SweepScheduler

	resetter Resetter
	clock    generic.Clock
	logger   zerolog.Logger
	bg       sync.WaitGroup

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(d Deps) *Handler {
	if d.Publisher == nil {
		d.Publisher = notify.NopPublisher{}
	}
	if d.Clock == nil {
		d.Clock = generic.SystemClock{}
	}
	if d.Scheduler == nil {
		d.Scheduler = NewSweepScheduler(d.Rewards, d.Logger)
		d.Scheduler.Enabled = false
	}
	return &Handler{
		Engine:    d.Engine,
		Rewards:   d.Rewards,
		Configs:   factory.NewConfigFactory(),
		Publisher: d.Publisher,
		Scheduler: d.Scheduler,
		resetter:  d.Resetter,
		clock:     d.Clock,
		logger:    d.Logger,
	}
}

// Wait blocks until every background job has finished.
func (h *Handler) Wait() {
	h.bg.Wait()
}

// dispatch runs fn on a tracked goroutine with its own deadline. Failures
// are logged; they never reach the client.
func (h *Handler) dispatch(job string, fields map[string]string, fn func(ctx context.Context) error) {
	h.bg.Add(1)
	go func() {
		defer h.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			ev := h.logger.Warn().Err(err).Str("job", job)
			for k, v := range fields {
				ev = ev.Str(k, v)
			}
			ev.Msg("background job failed")
		}
	}()
}

// =============================================================================
// RESOURCE HANDLERS
// =============================================================================

// ListResources returns all resources, optionally filtered by kind.
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	list, err := h.Engine.ListResources(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ResourceDTO, len(list))
	for i, res := range list {
		dtos[i] = toResourceDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetResource returns a single resource.
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.GetResource(r.Context(), generic.ResourceID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResourceDTO(*res))
}

// CreateResource registers a room or item.
func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rate, err := parseMoney(req.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	res, err := h.Engine.AddResource(r.Context(), booking.ResourceInput{
		ID:       generic.ResourceID(req.ID),
		Kind:     req.Kind,
		Name:     req.Name,
		Rate:     rate,
		Capacity: req.Capacity,
		Active:   active,
	}, actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResourceDTO(*res))
}

// SetResourceActive enables or disables a resource.
func (h *Handler) SetResourceActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	res, err := h.Engine.SetResourceActive(r.Context(), generic.ResourceID(chi.URLParam(r, "id")), req.Active, actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResourceDTO(*res))
}

// GetAvailability returns the day view (?date=) or, with ?from=&to=, the
// range view.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.ResourceID(chi.URLParam(r, "id"))
	q := r.URL.Query()

	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := parseTimeParam(q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from (use YYYY-MM-DD or RFC3339)", err)
			return
		}
		to, err := parseTimeParam(q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to (use YYYY-MM-DD or RFC3339)", err)
			return
		}
		view, err := h.Engine.RangeAvailability(ctx, id, from, to)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRangeAvailabilityDTO(view))
		return
	}

	date := h.clock.Now()
	if s := q.Get("date"); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		date = d
	}
	view, err := h.Engine.DayAvailability(ctx, id, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayAvailabilityDTO(view))
}

// ListResourceReservations returns every reservation on one resource.
func (h *Handler) ListResourceReservations(w http.ResponseWriter, r *http.Request) {
	filter := generic.ReservationFilter{ResourceID: generic.ResourceID(chi.URLParam(r, "id"))}
	list, err := h.Engine.List(r.Context(), filter, actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(list))
}

// =============================================================================
// RESERVATION HANDLERS
// =============================================================================

// CreateReservation books a room or rents an item for the caller.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := parseTimeParam(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start", err)
		return
	}
	end, err := parseTimeParam(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end", err)
		return
	}

	res, err := h.Engine.Reserve(r.Context(), booking.ReserveInput{
		ResourceID:  generic.ResourceID(req.ResourceID),
		RequesterID: actor.ID,
		Start:       start,
		End:         end,
		Notes:       req.Notes,
	})
	if err != nil {
		metrics.IncReservationRejected(generic.Kind(err))
		writeDomainError(w, err)
		return
	}

	metrics.IncReservationCreated(res.Kind)
	h.afterReserve(*res)
	writeJSON(w, http.StatusCreated, toReservationDTO(*res))
}

// afterReserve posts the accrual and publishes the created event.
func (h *Handler) afterReserve(res generic.Reservation) {
	fields := map[string]string{
		"reservation_id": string(res.ID),
		"resource_id":    string(res.ResourceID),
		"account_id":     string(res.RequesterID),
	}
	h.dispatch("accrue", fields, func(ctx context.Context) error {
		category := booking.AccrualCategory(res.Kind)
		entry, err := h.Rewards.Accrue(ctx, rewards.AccrueInput{
			AccountID:   res.RequesterID,
			Category:    category,
			Spend:       res.Price,
			Description: fmt.Sprintf("%s %s", res.Kind, res.ResourceID),
			ReferenceID: string(res.ID),
		})
		if err != nil {
			return err
		}
		if entry != nil {
			metrics.AddPointsPosted(string(category), entry.Amount)
		}
		return nil
	})
	h.dispatch("notify", fields, func(ctx context.Context) error {
		return h.Publisher.Publish(ctx, notify.EventFor(notify.EventReservationCreated, res, h.clock.Now()))
	})
}

// afterCancel publishes the cancelled event and reverses the points the
// reservation earned.
func (h *Handler) afterCancel(res generic.Reservation) {
	late := res.CancellationFee != nil && !res.CancellationFee.IsZero()
	metrics.IncReservationCancelled(late)

	fields := map[string]string{
		"reservation_id": string(res.ID),
		"account_id":     string(res.RequesterID),
	}
	h.dispatch("reverse accrual", fields, func(ctx context.Context) error {
		return h.reverseAccrual(ctx, res)
	})
	h.dispatch("notify", fields, func(ctx context.Context) error {
		return h.Publisher.Publish(ctx, notify.EventFor(notify.EventReservationCancelled, res, h.clock.Now()))
	})
}

// reverseAccrual takes back the points the reservation earned. The ledger
// orders it against the accrual, whichever of the two runs first.
func (h *Handler) reverseAccrual(ctx context.Context, res generic.Reservation) error {
	_, err := h.Rewards.Reverse(ctx, rewards.ReverseInput{
		AccountID:   res.RequesterID,
		ReferenceID: string(res.ID),
		Category:    booking.AccrualCategory(res.Kind),
		Description: "reversal: reservation cancelled",
	})
	return err
}

// ListReservations is the admin list with filters.
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := generic.ReservationFilter{
		ResourceID:    generic.ResourceID(q.Get("resource_id")),
		RequesterID:   generic.AccountID(q.Get("requester_id")),
		Kind:          q.Get("kind"),
		Status:        generic.ReservationStatus(q.Get("status")),
		PaymentStatus: generic.PaymentStatus(q.Get("payment_status")),
	}
	list, err := h.Engine.List(r.Context(), filter, actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(list))
}

// ListMyReservations returns the caller's reservations, newest first.
func (h *Handler) ListMyReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.Engine.ListByRequester(r.Context(), actorFrom(r).ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(list))
}

// GetReservation returns one reservation to its owner or an admin.
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Get(r.Context(), generic.ReservationID(chi.URLParam(r, "id")), actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(*res))
}

// GetCancellationFee previews the fee cancelling now would charge.
func (h *Handler) GetCancellationFee(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Get(r.Context(), generic.ReservationID(chi.URLParam(r, "id")), actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	now := h.clock.Now()
	fee := booking.CancellationFee(*res, now)
	writeJSON(w, http.StatusOK, FeeQuoteDTO{
		ReservationID: string(res.ID),
		Fee:           fee.String(),
		Late:          !fee.IsZero(),
		AsOf:          now.Format(time.RFC3339),
	})
}

// CancelReservation cancels a reservation, recording the fee.
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	res, err := h.Engine.Cancel(r.Context(), generic.ReservationID(chi.URLParam(r, "id")), actorFrom(r), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.afterCancel(*res)
	writeJSON(w, http.StatusOK, toReservationDTO(*res))
}

// UpdateReservationStatus applies any lifecycle transition.
func (h *Handler) UpdateReservationStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	to := generic.ReservationStatus(req.Status)
	if !to.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown status", fmt.Errorf("status %q", req.Status))
		return
	}

	res, err := h.Engine.UpdateStatus(r.Context(), generic.ReservationID(chi.URLParam(r, "id")), to, actorFrom(r), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if to == generic.StatusCancelled {
		h.afterCancel(*res)
	} else {
		fields := map[string]string{"reservation_id": string(res.ID)}
		snapshot := *res
		h.dispatch("notify", fields, func(ctx context.Context) error {
			return h.Publisher.Publish(ctx, notify.EventFor(notify.EventReservationStatus, snapshot, h.clock.Now()))
		})
	}
	writeJSON(w, http.StatusOK, toReservationDTO(*res))
}

// UpdatePaymentStatus moves the payment status (admin only).
func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	res, err := h.Engine.UpdatePaymentStatus(r.Context(), generic.ReservationID(chi.URLParam(r, "id")),
		generic.PaymentStatus(req.PaymentStatus), actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(*res))
}

// =============================================================================
// REWARDS HANDLERS
// =============================================================================

// GetMySummary returns the caller's rewards summary.
func (h *Handler) GetMySummary(w http.ResponseWriter, r *http.Request) {
	h.writeSummary(w, r, actorFrom(r).ID)
}

// GetAccountSummary returns any account's summary (admin or the owner).
func (h *Handler) GetAccountSummary(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	id := generic.AccountID(chi.URLParam(r, "id"))
	if !actor.IsAdmin() && actor.ID != id {
		writeDomainError(w, generic.ErrUnauthorized)
		return
	}
	h.writeSummary(w, r, id)
}

func (h *Handler) writeSummary(w http.ResponseWriter, r *http.Request, id generic.AccountID) {
	sum, err := h.Rewards.Summary(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryDTO{
		Account:  toAccountDTO(sum.Account),
		Discount: sum.Discount.String(),
		Recent:   toEntryDTOs(sum.Recent, h.clock.Now()),
		NextTier: sum.NextTier,
	})
}

// GetMyHistory returns the caller's ledger, newest first.
func (h *Handler) GetMyHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Rewards.History(r.Context(), actorFrom(r).ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries, h.clock.Now()))
}

// GetRewardConfig returns the current reward configuration document.
func (h *Handler) GetRewardConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Rewards.Config(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    cfg.Version,
		"config":     h.Configs.ToDocument(cfg),
		"updated_at": cfg.UpdatedAt.Format(time.RFC3339),
		"updated_by": cfg.UpdatedBy,
	})
}

// UpdateRewardConfig applies a partial update and re-classifies accounts.
func (h *Handler) UpdateRewardConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	patch, err := h.Configs.ParsePatch(body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	upd, err := h.Rewards.UpdateConfig(r.Context(), patch, actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info().
		Int("version", upd.Config.Version).
		Int("reclassified", upd.Reclassified).
		Str("updated_by", string(upd.Config.UpdatedBy)).
		Msg("reward config updated")
	writeJSON(w, http.StatusOK, ConfigUpdateDTO{Version: upd.Config.Version, Reclassified: upd.Reclassified})
}

// PostRewardEntry posts points to an account (admin).
func (h *Handler) PostRewardEntry(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsAdmin() {
		writeDomainError(w, generic.ErrUnauthorized)
		return
	}
	var req PostEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	category := generic.EntryCategory(strings.ToLower(req.Category))
	accountID := generic.AccountID(req.AccountID)

	var entry *generic.Entry
	if req.Amount != nil {
		e, _, err := h.Rewards.PostEntry(ctx, rewards.PostInput{
			AccountID:   accountID,
			Amount:      *req.Amount,
			Category:    category,
			Description: req.Description,
			ReferenceID: req.ReferenceID,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		entry = e
	} else {
		spend, err := parseMoney(req.Spend)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid spend", err)
			return
		}
		e, err := h.Rewards.Accrue(ctx, rewards.AccrueInput{
			AccountID:   accountID,
			Category:    category,
			Spend:       spend,
			Description: req.Description,
			ReferenceID: req.ReferenceID,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		entry = e
	}
	if entry != nil {
		metrics.AddPointsPosted(string(entry.Category), entry.Amount)
	}

	acct, err := h.Rewards.GetAccount(ctx, accountID)
	if err != nil && !generic.IsNotFound(err) {
		writeDomainError(w, err)
		return
	}
	resp := map[string]any{"entry": nil}
	if entry != nil {
		resp["entry"] = toEntryDTOs([]generic.Entry{*entry}, h.clock.Now())[0]
	}
	if acct != nil {
		resp["account"] = toAccountDTO(*acct)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// TriggerSweep runs the expiry sweeper now (admin).
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsAdmin() {
		writeDomainError(w, generic.ErrUnauthorized)
		return
	}
	run := h.Scheduler.RunNow(r.Context(), "manual")
	if run.Err != nil {
		writeDomainError(w, run.Err)
		return
	}
	writeJSON(w, http.StatusOK, run.DTO())
}

// ListSweeps returns the most recent sweep runs (admin).
func (h *Handler) ListSweeps(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsAdmin() {
		writeDomainError(w, generic.ErrUnauthorized)
		return
	}
	runs := h.Scheduler.History()
	dtos := make([]SweepDTO, len(runs))
	for i, run := range runs {
		dtos[i] = run.DTO()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":     dtos,
		"next_run": h.Scheduler.NextRunTime().Format(time.RFC3339),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error to its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := generic.Kind(err)
	resp := ErrorResponse{Error: err.Error(), Code: kind}

	var slotErr *generic.SlotUnavailableError
	if errors.As(err, &slotErr) {
		for _, id := range slotErr.Conflicts {
			resp.Conflicts = append(resp.Conflicts, string(id))
		}
	}

	if generic.IsStorageFault(err) || kind == "internal" {
		resp.Error = "Internal error"
		resp.Details = err.Error()
	}
	writeJSON(w, statusFor(kind), resp)
}

func statusFor(kind string) int {
	switch kind {
	case "invalid_range", "invalid_input", "invalid_config":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "slot_unavailable", "invalid_transition", "already_cancelled", "concurrent_modification":
		return http.StatusConflict
	case "resource_unavailable":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseTimeParam accepts RFC3339 or a bare YYYY-MM-DD (UTC midnight).
func parseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing time")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

func parseMoney(s string) (generic.Money, error) {
	if s == "" {
		return generic.ZeroMoney(), nil
	}
	return generic.ParseMoney(s)
}

// decodeOptional decodes a JSON body when one is present.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
