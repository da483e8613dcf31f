package v1

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/server/service/booking"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// ReservationStore is the persistence surface this service reads from.
// *store.Store satisfies it.
type ReservationStore interface {
	ListReservations(ctx context.Context, find *store.FindReservation) ([]*store.Reservation, error)
}

// ReservationService exposes reservation listing and the upcoming feed.
// Mutations go through the dialogue flow; the HTTP surface is read-side
// plus direct booking for API clients.
type ReservationService struct {
	Booking booking.Service
	Store   ReservationStore
}

func (s *ReservationService) RegisterRoutes(g *echo.Group) {
	g.GET("/reservations", s.listReservations)
	g.GET("/reservations/feed.atom", s.upcomingFeed)
	g.POST("/reservations", s.createReservation)
}

type reservationView struct {
	UID         string `json:"uid"`
	Resource    string `json:"resource"`
	ServiceType string `json:"serviceType"`
	StartTs     int64  `json:"startTs"`
	EndTs       int64  `json:"endTs"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
	CreatedTs   int64  `json:"createdTs"`
}

func reservationFromStore(r *store.Reservation) *reservationView {
	return &reservationView{
		UID:         r.UID,
		Resource:    r.Resource,
		ServiceType: r.ServiceType,
		StartTs:     r.StartTs,
		EndTs:       r.EndTs,
		Status:      string(r.Status),
		Note:        r.Note,
		CreatedTs:   r.CreatedTs,
	}
}

// listReservations supports a CEL filter, e.g.
// ?filter=status == 'confirmed' && service == 'demo'
func (s *ReservationService) listReservations(c echo.Context) error {
	filter, err := parseReservationFilter(c.QueryParam("filter"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	find := &store.FindReservation{}
	if filter.Status != "" {
		find.Statuses = []store.ReservationStatus{store.ReservationStatus(filter.Status)}
	}
	if filter.ServiceType != "" {
		find.ServiceType = &filter.ServiceType
	}
	if filter.Resource != "" {
		find.Resource = &filter.Resource
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		find.Limit = &limit
	}

	reservations, err := s.Store.ListReservations(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	views := make([]*reservationView, 0, len(reservations))
	for _, r := range reservations {
		views = append(views, reservationFromStore(r))
	}
	return c.JSON(http.StatusOK, map[string]any{"reservations": views})
}

// upcomingFeed renders upcoming reservations as an Atom feed for calendar
// readers.
func (s *ReservationService) upcomingFeed(c echo.Context) error {
	reservations, err := s.Booking.Upcoming(c.Request().Context(), 100)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	feed := &feeds.Feed{
		Title:       "Upcoming reservations",
		Link:        &feeds.Link{Href: c.Request().URL.String()},
		Description: "Reservations starting after now",
		Updated:     time.Now(),
	}
	for _, r := range reservations {
		start := time.Unix(r.StartTs, 0).UTC()
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          r.UID,
			Title:       fmt.Sprintf("%s at %s", r.ServiceType, start.Format("2006-01-02 15:04")),
			Description: fmt.Sprintf("Status: %s, resource: %s", r.Status, r.Resource),
			Created:     time.Unix(r.CreatedTs, 0).UTC(),
			Updated:     time.Unix(r.UpdatedTs, 0).UTC(),
		})
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(atom))
}

type createReservationRequest struct {
	Resource     string `json:"resource"`
	ServiceType  string `json:"serviceType"`
	CustomerName string `json:"customerName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	StartTs      int64  `json:"startTs"`
	DurationMins int    `json:"durationMins"`
	Note         string `json:"note"`
}

// createReservation books directly, bypassing the dialogue. Conflicts come
// back as 409 with the alternative slots.
func (s *ReservationService) createReservation(c echo.Context) error {
	var req createReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	reservation, conflict, err := s.Booking.Resolve(c.Request().Context(), &booking.Request{
		Resource:     req.Resource,
		ServiceType:  req.ServiceType,
		CustomerName: req.CustomerName,
		Email:        req.Email,
		Phone:        req.Phone,
		Start:        time.Unix(req.StartTs, 0).UTC(),
		DurationMins: req.DurationMins,
		Note:         req.Note,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if conflict != nil {
		return c.JSON(http.StatusConflict, conflict)
	}
	return c.JSON(http.StatusCreated, reservationFromStore(reservation))
}
