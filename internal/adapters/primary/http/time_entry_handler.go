package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lorrc/service-desk-lifecycle/internal/adapters/primary/validation"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
)

// TimeEntryHandler handles time logging against tickets.
type TimeEntryHandler struct {
	timeEntryService ports.TimeEntryService
	errorHandler     *ErrorHandler
}

// NewTimeEntryHandler creates a new time entry handler
func NewTimeEntryHandler(
	timeEntryService ports.TimeEntryService,
	errorHandler *ErrorHandler,
) *TimeEntryHandler {
	return &TimeEntryHandler{
		timeEntryService: timeEntryService,
		errorHandler:     errorHandler,
	}
}

// TicketRouter serves /tickets/{ticketID}/time-entries. The ticket ID is
// read from the parent route.
func (h *TimeEntryHandler) TicketRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.HandleListTimeEntries)
	r.Post("/", h.HandleCreateTimeEntry)
	return r
}

// Router serves /time-entries.
func (h *TimeEntryHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Patch("/{entryID}", h.HandleUpdateTimeEntry)
	return r
}

// --- Request/Response DTOs ---

// CreateTimeEntryRequest defines the expected JSON body for logging time.
// Billable defaults to true.
type CreateTimeEntryRequest struct {
	Hours        float64 `json:"hours"`
	Description  string  `json:"description"`
	WorkType     *string `json:"workType"`
	ServiceLevel *string `json:"serviceLevel"`
	Billable     *bool   `json:"billable"`
	EntryDate    string  `json:"entryDate"`
}

// UpdateTimeEntryRequest is a partial update. billingRate and costRate are
// accepted only so they can be refused.
type UpdateTimeEntryRequest struct {
	Hours       domain.Optional[float64] `json:"hours"`
	Description domain.Optional[string]  `json:"description"`
	WorkType    domain.Optional[*string] `json:"workType"`
	Billable    domain.Optional[bool]    `json:"billable"`
	EntryDate   domain.Optional[string]  `json:"entryDate"`
	BillingRate domain.Optional[float64] `json:"billingRate"`
	CostRate    domain.Optional[float64] `json:"costRate"`
}

func (r *UpdateTimeEntryRequest) toPatch() domain.TimeEntryPatch {
	return domain.TimeEntryPatch{
		Hours:       r.Hours,
		Description: r.Description,
		WorkType:    r.WorkType,
		Billable:    r.Billable,
		EntryDate:   r.EntryDate,
		BillingRate: r.BillingRate,
		CostRate:    r.CostRate,
	}
}

// TimeEntryDTO defines the JSON response for a time entry.
type TimeEntryDTO struct {
	ID           string        `json:"id"`
	TicketID     int64         `json:"ticketId"`
	UserID       string        `json:"userId"`
	Hours        float64       `json:"hours"`
	Description  string        `json:"description"`
	WorkType     *string       `json:"workType"`
	ServiceLevel *string       `json:"serviceLevel"`
	Billable     bool          `json:"billable"`
	EntryDate    string        `json:"entryDate"`
	BillingRate  float64       `json:"billingRate"`
	CostRate     float64       `json:"costRate"`
	RateSource   string        `json:"rateSource,omitempty"`
	Totals       domain.Totals `json:"totals"`
	CreatedAt    string        `json:"createdAt"`
	UpdatedAt    *string       `json:"updatedAt"`
}

func toTimeEntryDTO(view ports.TimeEntryView) TimeEntryDTO {
	e := view.Entry
	return TimeEntryDTO{
		ID:           e.ID.String(),
		TicketID:     e.TicketID,
		UserID:       e.UserID.String(),
		Hours:        e.Hours,
		Description:  e.Description,
		WorkType:     e.WorkType,
		ServiceLevel: e.ServiceLevel,
		Billable:     e.Billable,
		EntryDate:    e.EntryDate.Format(time.DateOnly),
		BillingRate:  e.BillingRate,
		CostRate:     e.CostRate,
		RateSource:   string(e.RateSource),
		Totals:       view.Totals,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    formatTime(e.UpdatedAt),
	}
}

// TimeEntryListResponse carries the entries of a ticket and their sum.
type TimeEntryListResponse struct {
	Data   []TimeEntryDTO `json:"data"`
	Count  int            `json:"count"`
	Totals domain.Totals  `json:"totals"`
}

// --- Handlers ---

// HandleCreateTimeEntry handles POST /tickets/{ticketID}/time-entries
func (h *TimeEntryHandler) HandleCreateTimeEntry(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(w, r)
	if !ok {
		return
	}

	ticketID, err := validation.ParseInt64Param("ticketID", chi.URLParam(r, "ticketID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[CreateTimeEntryRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	v := validation.NewValidator()
	v.FloatRange("hours", req.Hours, domain.MinTimeEntryHours, domain.MaxTimeEntryHours)
	entryDate := v.Date("entryDate", req.EntryDate)
	if v.HasErrors() {
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	billable := true
	if req.Billable != nil {
		billable = *req.Billable
	}

	view, err := h.timeEntryService.CreateTimeEntry(r.Context(), ports.CreateTimeEntryParams{
		TenantID:     claims.TenantID,
		TicketID:     ticketID,
		UserID:       claims.UserID,
		Hours:        req.Hours,
		Description:  req.Description,
		WorkType:     req.WorkType,
		ServiceLevel: req.ServiceLevel,
		Billable:     billable,
		EntryDate:    entryDate,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toTimeEntryDTO(*view))
}

// HandleListTimeEntries handles GET /tickets/{ticketID}/time-entries
func (h *TimeEntryHandler) HandleListTimeEntries(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(w, r)
	if !ok {
		return
	}

	ticketID, err := validation.ParseInt64Param("ticketID", chi.URLParam(r, "ticketID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	views, totals, err := h.timeEntryService.ListTimeEntries(r.Context(), claims.TenantID, ticketID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	entries := make([]TimeEntryDTO, 0, len(views))
	for _, view := range views {
		entries = append(entries, toTimeEntryDTO(view))
	}

	WriteJSON(w, http.StatusOK, TimeEntryListResponse{
		Data:   entries,
		Count:  len(entries),
		Totals: totals,
	})
}

// HandleUpdateTimeEntry handles PATCH /time-entries/{entryID}
func (h *TimeEntryHandler) HandleUpdateTimeEntry(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(w, r)
	if !ok {
		return
	}

	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		v := validation.NewValidator()
		v.Custom("entryID", false, "Invalid time entry ID")
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	req, err := validation.DecodeAndValidate[UpdateTimeEntryRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	view, err := h.timeEntryService.UpdateTimeEntry(r.Context(), ports.UpdateTimeEntryParams{
		TenantID: claims.TenantID,
		EntryID:  entryID,
		ActorID:  claims.UserID,
		Patch:    req.toPatch(),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTimeEntryDTO(*view))
}
