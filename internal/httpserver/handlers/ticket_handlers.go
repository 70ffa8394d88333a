package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/auth"
	"infinitetms/internal/models"
	"infinitetms/internal/service"
)

func statusQuery(r *http.Request) (*models.TicketStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	s, err := models.ParseStatus(raw)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return &s, nil
}

func listTickets(svc TicketAPI, lg *zap.SugaredLogger, view service.TicketView, w http.ResponseWriter, r *http.Request) ([]models.Ticket, bool) {
	status, err := statusQuery(r)
	if err != nil {
		respondError(w, lg, err)
		return nil, false
	}
	tickets, err := svc.List(r.Context(), auth.FromContext(r.Context()), view, status)
	if err != nil {
		respondError(w, lg, err)
		return nil, false
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, true
}

// ListTickets serves GET /tickets?view=pool|mine|all&status=.
func ListTickets(svc TicketAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := service.TicketView(strings.ToLower(r.URL.Query().Get("view")))
		if tickets, ok := listTickets(svc, lg, view, w, r); ok {
			respondJSON(w, tickets)
		}
	}
}

// MyTickets lists the caller's tickets, grouped by "Month Year" when
// ?group=period is given.
func MyTickets(svc TicketAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tickets, ok := listTickets(svc, lg, service.ViewMine, w, r)
		if !ok {
			return
		}
		if r.URL.Query().Get("group") == "period" {
			groups := service.GroupByPeriod(tickets)
			if groups == nil {
				groups = []service.PeriodGroup{}
			}
			respondJSON(w, groups)
			return
		}
		respondJSON(w, tickets)
	}
}

func AdminTickets(svc TicketAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tickets, ok := listTickets(svc, lg, service.ViewAll, w, r); ok {
			respondJSON(w, tickets)
		}
	}
}

type createTicketReq struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Month       string         `json:"month"`
	Year        flexInt        `json:"year"`
	Assignee    flexAssigneeID `json:"assignee"`
}

func CreateTicket(svc TicketAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTicketReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		t, err := svc.Create(r.Context(), auth.FromContext(r.Context()), service.CreateTicketInput{
			Title:       req.Title,
			Description: req.Description,
			Month:       req.Month,
			Year:        int(req.Year),
			Assignee:    req.Assignee.ID(),
		})
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondStatus(w, http.StatusCreated, t)
	}
}

func GetTicket(svc TicketAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, lg, err)
			return
		}
		t, err := svc.Get(r.Context(), auth.FromContext(r.Context()), id)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, t)
	}
}

type updateTicketReq struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
	Assignee    flexAssigneeID `json:"assignee"`
	Version     *int64         `json:"version"`
}

// UpdateTicket applies a manual edit. "assignee": null (or "") unassigns;
// omitting the key leaves the assignee alone.
func UpdateTicket(svc TicketAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, lg, err)
			return
		}
		var req updateTicketReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		in := service.UpdateTicketInput{Title: req.Title, Description: req.Description, Version: req.Version}
		if req.Status != nil {
			s, err := models.ParseStatus(*req.Status)
			if err != nil {
				respondError(w, lg, apperr.Validation(err.Error()))
				return
			}
			in.Status = &s
		}
		if req.Assignee.Set() {
			if req.Assignee.ID() == nil {
				in.Unassign = true
			} else {
				in.Assignee = req.Assignee.ID()
			}
		}
		t, err := svc.Update(r.Context(), auth.FromContext(r.Context()), id, in)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, t)
	}
}

func DeleteTicket(svc TicketAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, lg, err)
			return
		}
		if err := svc.Delete(r.Context(), auth.FromContext(r.Context()), id); err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, map[string]any{"deleted": true})
	}
}

func ClaimTicket(svc TicketAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, lg, err)
			return
		}
		t, err := svc.Claim(r.Context(), auth.FromContext(r.Context()), id)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, t)
	}
}

func TicketSummary(svc TicketAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, lg, err)
			return
		}
		summary, err := svc.Summary(r.Context(), auth.FromContext(r.Context()), id)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, map[string]any{"summary": summary})
	}
}

func ListTicketUpdates(svc TicketAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, lg, err)
			return
		}
		updates, err := svc.ListUpdates(r.Context(), auth.FromContext(r.Context()), id)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		if updates == nil {
			updates = []models.TicketUpdate{}
		}
		respondJSON(w, updates)
	}
}

// PostUpdate takes a multipart form with ticketId, updateText and an
// optional screenshot file.
func PostUpdate(svc TicketAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseForm(r); err != nil {
			respondError(w, lg, err)
			return
		}
		ticketID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("ticketId")), 10, 64)
		if err != nil || ticketID <= 0 {
			respondError(w, lg, apperr.Validation("invalid ticketId"))
			return
		}
		shot, closeFile, err := formFile(r, "screenshot")
		if err != nil {
			respondError(w, lg, err)
			return
		}
		defer closeFile()

		u, t, err := svc.AddUpdate(r.Context(), auth.FromContext(r.Context()), service.AddUpdateInput{
			TicketID:   ticketID,
			Text:       r.FormValue("updateText"),
			Screenshot: shot,
		})
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondStatus(w, http.StatusCreated, map[string]any{"update": u, "ticket": t})
	}
}
