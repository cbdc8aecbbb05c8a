package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	mw "github.com/lorrc/service-desk-lifecycle/internal/adapters/primary/http/middleware"
	"github.com/lorrc/service-desk-lifecycle/internal/adapters/primary/validation"
	"github.com/lorrc/service-desk-lifecycle/internal/auth"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
	"github.com/lorrc/service-desk-lifecycle/internal/core/services"
	"github.com/lorrc/service-desk-lifecycle/internal/infrastructure/logging"
)

// TicketHandler handles HTTP requests for tickets, their SLA position and
// assignment.
type TicketHandler struct {
	ticketService     ports.TicketService
	assignmentService ports.AssignmentService
	timeEntryHandler  *TimeEntryHandler
	errorHandler      *ErrorHandler
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(
	ticketService ports.TicketService,
	assignmentService ports.AssignmentService,
	timeEntryHandler *TimeEntryHandler,
	errorHandler *ErrorHandler,
) *TicketHandler {
	return &TicketHandler{
		ticketService:     ticketService,
		assignmentService: assignmentService,
		timeEntryHandler:  timeEntryHandler,
		errorHandler:      errorHandler,
	}
}

// Router sets up a new chi Router for all ticket-related routes.
func (h *TicketHandler) Router() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up the routing for all ticket endpoints.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleCreateTicket)

	r.Route("/{ticketID}", func(r chi.Router) {
		r.Use(ticketLogContext)
		r.Get("/", h.HandleGetTicket)
		r.Patch("/status", h.HandleUpdateStatus)
		r.Post("/first-response", h.HandleRecordFirstResponse)
		r.Get("/sla", h.HandleGetSLAStatus)
		r.Post("/auto-assign", h.HandleAutoAssign)
		r.Get("/recommendations", h.HandleRecommendations)

		// Mount the time entry routes nested under /tickets/{ticketID}
		if h.timeEntryHandler != nil {
			r.Mount("/time-entries", h.timeEntryHandler.TicketRouter())
		}
	})
}

// --- Request/Response DTOs ---

var (
	priorityValues = []string{
		string(domain.PriorityLow),
		string(domain.PriorityMedium),
		string(domain.PriorityHigh),
		string(domain.PriorityCritical),
	}
	statusValues = func() []string {
		out := make([]string, 0, len(domain.AllStatuses))
		for _, s := range domain.AllStatuses {
			out = append(out, string(s))
		}
		return out
	}()
)

// CreateTicketRequest defines the expected JSON body for creating a ticket
type CreateTicketRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	CustomerID  string   `json:"customerId"`
	ContractID  string   `json:"contractId"`
	AutoAssign  bool     `json:"autoAssign"`
}

// toParams validates the request and builds the service input.
func (r *CreateTicketRequest) toParams(claims *auth.Claims) (ports.CreateTicketParams, error) {
	v := validation.NewValidator()

	v.Required("title", r.Title).
		MaxLength("title", r.Title, domain.MaxTitleLength)
	v.MaxLength("description", r.Description, domain.MaxDescriptionLength)
	v.Required("priority", r.Priority).
		OneOf("priority", r.Priority, priorityValues)
	v.Required("customerId", r.CustomerID)
	customerID := v.UUID("customerId", r.CustomerID)
	contractID := v.UUID("contractId", r.ContractID)

	if v.HasErrors() {
		return ports.CreateTicketParams{}, v.Errors()
	}

	return ports.CreateTicketParams{
		TenantID:    claims.TenantID,
		RequesterID: claims.UserID,
		Title:       r.Title,
		Description: r.Description,
		Priority:    domain.TicketPriority(r.Priority),
		Category:    r.Category,
		Tags:        r.Tags,
		CustomerID:  *customerID,
		ContractID:  contractID,
		AutoAssign:  r.AutoAssign,
	}, nil
}

// UpdateStatusRequest defines the expected JSON body for status updates
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// Validate validates the update status request
func (r *UpdateStatusRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("status", r.Status).
		OneOf("status", r.Status, statusValues)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// TicketDTO defines the JSON response for tickets.
type TicketDTO struct {
	ID                 int64    `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Status             string   `json:"status"`
	Priority           string   `json:"priority"`
	Category           string   `json:"category,omitempty"`
	Tags               []string `json:"tags"`
	RequesterID        string   `json:"requesterId"`
	CustomerID         string   `json:"customerId"`
	ContractID         *string  `json:"contractId"`
	AssignedTo         *string  `json:"assignedTo"`
	SLAResponseDue     *string  `json:"slaResponseDue"`
	SLAResolutionDue   *string  `json:"slaResolutionDue"`
	FirstResponseAt    *string  `json:"firstResponseAt"`
	ResolvedAt         *string  `json:"resolvedAt"`
	ClosedAt           *string  `json:"closedAt"`
	SLABreached        bool     `json:"slaBreached"`
	SLABreachReason    string   `json:"slaBreachReason,omitempty"`
	AllowedTransitions []string `json:"allowedTransitions"`
	CreatedAt          string   `json:"createdAt"`
	UpdatedAt          *string  `json:"updatedAt"`
}

func toTicketDTO(ticket *domain.Ticket) TicketDTO {
	var contractID, assignedTo *string
	if ticket.ContractID != nil {
		value := ticket.ContractID.String()
		contractID = &value
	}
	if ticket.AssignedTo != nil {
		value := ticket.AssignedTo.String()
		assignedTo = &value
	}

	allowed := ticket.Status.AllowedTransitions()
	transitions := make([]string, 0, len(allowed))
	for _, s := range allowed {
		transitions = append(transitions, string(s))
	}

	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}

	return TicketDTO{
		ID:                 ticket.ID,
		Title:              ticket.Title,
		Description:        ticket.Description,
		Status:             string(ticket.Status),
		Priority:           string(ticket.Priority),
		Category:           ticket.Category,
		Tags:               tags,
		RequesterID:        ticket.RequesterID.String(),
		CustomerID:         ticket.CustomerID.String(),
		ContractID:         contractID,
		AssignedTo:         assignedTo,
		SLAResponseDue:     formatTime(ticket.SLAResponseDue),
		SLAResolutionDue:   formatTime(ticket.SLAResolutionDue),
		FirstResponseAt:    formatTime(ticket.FirstResponseAt),
		ResolvedAt:         formatTime(ticket.ResolvedAt),
		ClosedAt:           formatTime(ticket.ClosedAt),
		SLABreached:        ticket.SLABreached,
		SLABreachReason:    ticket.SLABreachReason,
		AllowedTransitions: transitions,
		CreatedAt:          ticket.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          formatTime(ticket.UpdatedAt),
	}
}

// SLAStatusDTO defines the JSON response for a ticket's SLA position.
type SLAStatusDTO struct {
	TicketID             int64             `json:"ticketId"`
	ResponseDue          *string           `json:"responseDue"`
	ResolutionDue        *string           `json:"resolutionDue"`
	FirstResponseAt      *string           `json:"firstResponseAt"`
	ResolvedAt           *string           `json:"resolvedAt"`
	Breach               domain.BreachInfo `json:"breach"`
	BusinessHoursElapsed float64           `json:"businessHoursElapsed"`
	EvaluatedAt          string            `json:"evaluatedAt"`
}

func toSLAStatusDTO(status *domain.SLAStatus) SLAStatusDTO {
	return SLAStatusDTO{
		TicketID:             status.TicketID,
		ResponseDue:          formatTime(status.ResponseDue),
		ResolutionDue:        formatTime(status.ResolutionDue),
		FirstResponseAt:      formatTime(status.FirstResponseAt),
		ResolvedAt:           formatTime(status.ResolvedAt),
		Breach:               status.Breach,
		BusinessHoursElapsed: status.BusinessHoursElapsed,
		EvaluatedAt:          status.EvaluatedAt.Format(time.RFC3339),
	}
}

// CandidateDTO is a scored technician.
type CandidateDTO struct {
	UserID      string   `json:"userId"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Workload    int      `json:"workload"`
	IsAvailable bool     `json:"isAvailable"`
	Score       int      `json:"score"`
	Reasons     []string `json:"reasons"`
}

func toCandidateDTO(c domain.ScoredCandidate) CandidateDTO {
	reasons := c.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return CandidateDTO{
		UserID:      c.Candidate.UserID.String(),
		Name:        c.Candidate.Name,
		Role:        string(c.Candidate.Role),
		Workload:    c.Candidate.CurrentWorkload,
		IsAvailable: c.Candidate.IsAvailable,
		Score:       c.Score,
		Reasons:     reasons,
	}
}

// AutoAssignResponse reports the outcome of auto-assignment. Assigned is
// false when no technician qualified.
type AutoAssignResponse struct {
	Assigned bool          `json:"assigned"`
	Assignee *CandidateDTO `json:"assignee,omitempty"`
	Ticket   TicketDTO     `json:"ticket"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := t.Format(time.RFC3339)
	return &value
}

// --- Handlers ---

// HandleCreateTicket handles POST /tickets
func (h *TicketHandler) HandleCreateTicket(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeAndValidate[CreateTicketRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params, err := req.toParams(claims)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.ticketService.CreateTicket(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toTicketDTO(ticket))
}

// HandleGetTicket handles GET /tickets/{ticketID}
func (h *TicketHandler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	claims, ticketID, ok := h.ticketRequest(w, r)
	if !ok {
		return
	}

	ticket, err := h.ticketService.GetTicket(r.Context(), claims.TenantID, ticketID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleUpdateStatus handles PATCH /tickets/{ticketID}/status
func (h *TicketHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ticketID, ok := h.ticketRequest(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeAndValidate[UpdateStatusRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.ticketService.UpdateStatus(r.Context(), ports.UpdateStatusParams{
		TenantID: claims.TenantID,
		TicketID: ticketID,
		Status:   domain.TicketStatus(req.Status),
		ActorID:  claims.UserID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleRecordFirstResponse handles POST /tickets/{ticketID}/first-response
func (h *TicketHandler) HandleRecordFirstResponse(w http.ResponseWriter, r *http.Request) {
	claims, ticketID, ok := h.ticketRequest(w, r)
	if !ok {
		return
	}

	ticket, err := h.ticketService.RecordFirstResponse(r.Context(), claims.TenantID, ticketID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleGetSLAStatus handles GET /tickets/{ticketID}/sla
func (h *TicketHandler) HandleGetSLAStatus(w http.ResponseWriter, r *http.Request) {
	claims, ticketID, ok := h.ticketRequest(w, r)
	if !ok {
		return
	}

	status, err := h.ticketService.GetSLAStatus(r.Context(), claims.TenantID, ticketID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toSLAStatusDTO(status))
}

// HandleAutoAssign handles POST /tickets/{ticketID}/auto-assign
func (h *TicketHandler) HandleAutoAssign(w http.ResponseWriter, r *http.Request) {
	claims, ticketID, ok := h.ticketRequest(w, r)
	if !ok {
		return
	}

	result, err := h.assignmentService.AutoAssign(r.Context(), claims.TenantID, ticketID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	response := AutoAssignResponse{
		Assigned: result.Assigned,
		Ticket:   toTicketDTO(result.Ticket),
	}
	if result.Assigned && result.Choice != nil {
		assignee := toCandidateDTO(*result.Choice)
		response.Assignee = &assignee
	}

	WriteJSON(w, http.StatusOK, response)
}

// HandleRecommendations handles GET /tickets/{ticketID}/recommendations
func (h *TicketHandler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	claims, ticketID, ok := h.ticketRequest(w, r)
	if !ok {
		return
	}

	limit := validation.ParseIntQueryParam(r, "limit", services.DefaultRecommendationLimit)

	scored, err := h.assignmentService.Recommendations(r.Context(), claims.TenantID, ticketID, limit)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	candidates := make([]CandidateDTO, 0, len(scored))
	for _, c := range scored {
		candidates = append(candidates, toCandidateDTO(c))
	}

	WriteList(w, candidates)
}

// --- Helper methods ---

// ticketRequest resolves the caller and the {ticketID} path parameter,
// writing the error response itself when either is missing.
func (h *TicketHandler) ticketRequest(w http.ResponseWriter, r *http.Request) (*auth.Claims, int64, bool) {
	claims, ok := getClaims(w, r)
	if !ok {
		return nil, 0, false
	}

	ticketID, err := validation.ParseInt64Param("ticketID", chi.URLParam(r, "ticketID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return nil, 0, false
	}
	return claims, ticketID, true
}

// ticketLogContext tags log records made under /{ticketID} with the ticket.
func ticketLogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTicketID(r.Context(), chi.URLParam(r, "ticketID"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getClaims extracts user claims from the request context
func getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := mw.GetClaims(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Not authorized",
			Code:  "UNAUTHORIZED",
		})
		return nil, false
	}
	return claims, true
}
