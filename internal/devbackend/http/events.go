package http

import (
	"net/http"

	"github.com/aussiebroadwan/calendar/internal/devbackend/domain"
	"github.com/aussiebroadwan/calendar/internal/devbackend/service"
	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/httpx"
)

type EventsHandler struct {
	EventService *service.EventService
}

// HandleList returns every event ordered by start time.
//
//	@Summary	List events
//	@Tags		Events
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{array}		authsdk.EventResponse
//	@Failure	401	{object}	authsdk.ErrorResponse
//	@Router		/api/events [get].
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.EventService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toEventResponses(events))
}

// HandleListByUser returns the events owned by a user.
//
//	@Summary	List a user's events
//	@Tags		Events
//	@Security	BearerAuth
//	@Produce	json
//	@Param		userId	path		string	true	"owner id"
//	@Success	200		{array}		authsdk.EventResponse
//	@Router		/api/events/user/{userId} [get].
func (h *EventsHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	events, err := h.EventService.ListByOwner(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toEventResponses(events))
}

// HandleGet returns one event.
//
//	@Summary	Get an event
//	@Tags		Events
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"event id"
//	@Success	200	{object}	authsdk.EventResponse
//	@Failure	404	{object}	authsdk.ErrorResponse
//	@Router		/api/events/{id} [get].
func (h *EventsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.EventService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toEventResponse(e))
}

// HandleCreate creates an event owned by the caller unless ownerId says
// otherwise (admins only).
//
//	@Summary	Create an event
//	@Tags		Events
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		authsdk.EventRequest	true	"event"
//	@Success	201		{object}	authsdk.EventResponse
//	@Failure	400		{object}	authsdk.ErrorResponse
//	@Router		/api/events [post].
func (h *EventsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	e, err := h.EventService.Create(r.Context(), actorFrom(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toEventResponse(e))
}

// HandleUpdate replaces an event's fields.
//
//	@Summary	Update an event
//	@Tags		Events
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"event id"
//	@Param		body	body		authsdk.EventRequest	true	"event"
//	@Success	200		{object}	authsdk.EventResponse
//	@Failure	400		{object}	authsdk.ErrorResponse
//	@Failure	403		{object}	authsdk.ErrorResponse
//	@Failure	404		{object}	authsdk.ErrorResponse
//	@Router		/api/events/{id} [put].
func (h *EventsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	e, err := h.EventService.Update(r.Context(), actorFrom(r), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toEventResponse(e))
}

// HandleDelete removes an event. The response has an empty body.
//
//	@Summary	Delete an event
//	@Tags		Events
//	@Security	BearerAuth
//	@Param		id	path	string	true	"event id"
//	@Success	200
//	@Failure	403	{object}	authsdk.ErrorResponse
//	@Failure	404	{object}	authsdk.ErrorResponse
//	@Router		/api/events/{id} [delete].
func (h *EventsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.EventService.Delete(r.Context(), actorFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func decodeEvent(w http.ResponseWriter, r *http.Request) (service.EventInput, bool) {
	var req authsdk.EventRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return service.EventInput{}, false
	}
	return service.EventInput{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		OwnerID:     req.OwnerID,
		Status:      domain.EventStatus(req.Status),
	}, true
}

func actorFrom(r *http.Request) service.Actor {
	a := service.Actor{UserID: httpx.UserIDFromContext(r.Context())}
	if c, ok := httpx.ClaimsFromContext(r.Context()); ok {
		a.Role = domain.Role(c.Role)
	}
	return a
}

func toEventResponse(e domain.Event) authsdk.EventResponse {
	return authsdk.EventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		OwnerID:     e.OwnerID,
		CreatedAt:   e.CreatedAt,
		Status:      authsdk.EventStatus(e.Status),
	}
}

func toEventResponses(events []domain.Event) []authsdk.EventResponse {
	out := make([]authsdk.EventResponse, len(events))
	for i, e := range events {
		out[i] = toEventResponse(e)
	}
	return out
}
