package web

import (
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/gate"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

// datetime-local input format
const formTimeLayout = "2006-01-02T15:04"

func (c *Console) handleHome(w http.ResponseWriter, r *http.Request) {
	user, _ := gate.IdentityFrom(r.Context())
	render(w, r, http.StatusOK, "home.html", page{Title: "Home", User: user})
}

func (c *Console) handleEvents(w http.ResponseWriter, r *http.Request) {
	user, _ := gate.IdentityFrom(r.Context())
	p := page{Title: "Events", User: user, Form: eventForm{Status: string(authsdk.EventStatusDraft)}}

	events, err := c.listEvents(r)
	if err != nil {
		c.apiFailure(w, r, p, "events.html", err)
		return
	}
	p.Events = events
	render(w, r, http.StatusOK, "events.html", p)
}

func (c *Console) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := gate.IdentityFrom(r.Context())
	p := page{Title: "Events", User: user}

	if err := r.ParseForm(); err != nil {
		p.Error = "Malformed form submission."
		c.renderEvents(w, r, http.StatusBadRequest, p)
		return
	}
	p.Form = eventForm{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		StartTime:   r.PostFormValue("startTime"),
		EndTime:     r.PostFormValue("endTime"),
		Status:      r.PostFormValue("status"),
	}

	req, fields := p.Form.request()
	if len(fields) > 0 {
		p.Error = "Please correct the highlighted fields."
		p.Fields = fields
		c.renderEvents(w, r, http.StatusBadRequest, p)
		return
	}

	_, err := c.API.Post(r.Context(), "/api/events", req)
	var httpErr *authsdk.HTTPError
	switch {
	case err == nil:
		http.Redirect(w, r, "/events", http.StatusSeeOther)
	case errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusBadRequest:
		p.Error = "Please correct the highlighted fields."
		p.Fields = httpErr.Details
		c.renderEvents(w, r, http.StatusBadRequest, p)
	default:
		c.apiFailure(w, r, p, "events.html", err)
	}
}

func (c *Console) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := gate.IdentityFrom(r.Context())

	_, err := c.API.Delete(r.Context(), "/api/events/"+url.PathEscape(r.PathValue("id")))
	switch {
	case err == nil, authsdk.IsStatus(err, http.StatusNotFound):
		http.Redirect(w, r, "/events", http.StatusSeeOther)
	case authsdk.IsStatus(err, http.StatusForbidden):
		c.renderEvents(w, r, http.StatusForbidden, page{Title: "Events", User: user, Error: "Only the owner can delete that event."})
	default:
		c.apiFailure(w, r, page{Title: "Events", User: user}, "events.html", err)
	}
}

// renderEvents shows the events page with p's message, reloading the list
// best effort.
func (c *Console) renderEvents(w http.ResponseWriter, r *http.Request, status int, p page) {
	if events, err := c.listEvents(r); err == nil {
		p.Events = events
	} else if errors.Is(err, authsdk.ErrRefreshFailed) {
		c.apiFailure(w, r, p, "events.html", err)
		return
	}
	render(w, r, status, "events.html", p)
}

func (c *Console) listEvents(r *http.Request) ([]authsdk.EventResponse, error) {
	resp, err := c.API.Get(r.Context(), "/api/events")
	if err != nil {
		return nil, err
	}

	var events []authsdk.EventResponse
	if err := resp.Decode(&events); err != nil && !errors.Is(err, authsdk.ErrNoValue) {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })
	return events, nil
}

// apiFailure handles an error from an authenticated call. A failed refresh
// means the session is gone, so the visitor goes back to the login form.
func (c *Console) apiFailure(w http.ResponseWriter, r *http.Request, p page, name string, err error) {
	if errors.Is(err, authsdk.ErrRefreshFailed) {
		slogx.FromContext(r.Context()).Info("session expired", "err", err)
		c.endSession(r.Context())
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	slogx.FromContext(r.Context()).Error("api call failed", "err", err)
	p.Error = "The calendar service is unavailable."
	render(w, r, http.StatusBadGateway, name, p)
}

func (f eventForm) request() (authsdk.EventRequest, map[string]string) {
	fields := map[string]string{}

	start, err := time.ParseInLocation(formTimeLayout, f.StartTime, time.Local)
	if err != nil {
		fields["startTime"] = "is not a valid date and time"
	}
	end, err := time.ParseInLocation(formTimeLayout, f.EndTime, time.Local)
	if err != nil {
		fields["endTime"] = "is not a valid date and time"
	}
	if f.Title == "" {
		fields["title"] = "is required"
	}

	status := authsdk.EventStatus(f.Status)
	if status == "" {
		status = authsdk.EventStatusDraft
	}
	if !status.Valid() {
		fields["status"] = "must be DRAFT, PUBLISHED or CANCELLED"
	}

	return authsdk.EventRequest{
		Title:       f.Title,
		Description: f.Description,
		StartTime:   start,
		EndTime:     end,
		Status:      status,
	}, fields
}
