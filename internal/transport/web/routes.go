package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avstrong/reservations/internal/booking"
)

type reservationRequest struct {
	RoomID     string `json:"room_id"`
	ClientID   string `json:"client_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	GuestCount int    `json:"guest_count"`
	Currency   string `json:"currency"`
}

type roomRequest struct {
	Number      string           `json:"number"`
	Type        booking.RoomType `json:"type"`
	NightlyRate decimal.Decimal  `json:"nightly_rate"`
	Currency    string           `json:"currency"`
	Capacity    int              `json:"capacity"`
}

type statusRequest struct {
	Status booking.RoomStatus `json:"status"`
	Reason string             `json:"reason"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type availabilityResponse struct {
	RoomID    string `json:"room_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Available bool   `json:"available"`
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a YYYY-MM-DD date: %w", field, err)
	}

	return t, nil
}

func parseStay(checkIn, checkOut string) (time.Time, time.Time, error) {
	in, err := parseDate("check_in", checkIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	out, err := parseDate("check_out", checkOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	return in, out, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}

	return nil
}

// actor resolves the staff member named by X-User-ID.
func (s *Server) actor(r *http.Request) (*booking.User, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return nil, ErrMissingActor
	}

	return s.coordinator.ResolveActor(r.Context(), userID)
}

func (s *Server) createReservationHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reservationRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)

		return
	}

	checkIn, checkOut, err := parseStay(req.CheckIn, req.CheckOut)
	if err != nil {
		s.badRequest(w, err)

		return
	}

	if idempotencyKey := r.Header.Get("Idempotency-Key"); idempotencyKey != "" {
		ctx = booking.NewContextWithIdempotencyKey(ctx, idempotencyKey)
	}

	out, err := s.bManager.CreateReservation(ctx, booking.CreateInput{
		RoomID:     req.RoomID,
		ClientID:   req.ClientID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		GuestCount: req.GuestCount,
		Currency:   req.Currency,
	})
	if err != nil {
		s.writeError(w, err, "create a reservation")

		return
	}

	s.writeJSON(w, http.StatusCreated, out)
}

func (s *Server) getReservationHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.bManager.GetReservation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, "get a reservation")

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) updateReservationHandler(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)

		return
	}

	checkIn, checkOut, err := parseStay(req.CheckIn, req.CheckOut)
	if err != nil {
		s.badRequest(w, err)

		return
	}

	out, err := s.bManager.UpdateReservation(r.Context(), r.PathValue("id"), booking.UpdateInput{
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		GuestCount: req.GuestCount,
		Currency:   req.Currency,
	})
	if err != nil {
		s.writeError(w, err, "update a reservation")

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) cancelReservationHandler(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest

	// The body is optional.
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			s.badRequest(w, err)

			return
		}
	}

	if err := s.bManager.CancelReservation(r.Context(), r.PathValue("id"), req.Reason); err != nil {
		s.writeError(w, err, "cancel a reservation")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) confirmReservationHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.bManager.ConfirmReservation(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err, "confirm a reservation")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)

		return
	}

	out, err := s.bManager.AddRoom(r.Context(), booking.RoomInput{
		Number:      req.Number,
		Type:        req.Type,
		NightlyRate: req.NightlyRate,
		Currency:    req.Currency,
		Capacity:    req.Capacity,
	})
	if err != nil {
		s.writeError(w, err, "add a room")

		return
	}

	s.writeJSON(w, http.StatusCreated, out)
}

func (s *Server) listRoomsHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.bManager.ListRooms(r.Context())
	if err != nil {
		s.writeError(w, err, "list rooms")

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRoomHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.bManager.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, "get a room")

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) availableRoomsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	checkIn, checkOut, err := parseStay(query.Get("check_in"), query.Get("check_out"))
	if err != nil {
		s.badRequest(w, err)

		return
	}

	guests := 1

	if v := query.Get("guests"); v != "" {
		guests, err = strconv.Atoi(v)
		if err != nil {
			s.badRequest(w, fmt.Errorf("guests must be an integer: %w", err))

			return
		}
	}

	out, err := s.bManager.GetAvailableRooms(r.Context(), checkIn, checkOut, guests)
	if err != nil {
		s.writeError(w, err, "list available rooms")

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) roomAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	checkIn, checkOut, err := parseStay(query.Get("check_in"), query.Get("check_out"))
	if err != nil {
		s.badRequest(w, err)

		return
	}

	roomID := r.PathValue("id")

	available, err := s.bManager.IsRoomAvailable(r.Context(), roomID, checkIn, checkOut)
	if err != nil {
		s.writeError(w, err, "check room availability")

		return
	}

	s.writeJSON(w, http.StatusOK, availabilityResponse{
		RoomID:    roomID,
		CheckIn:   checkIn.Format(time.DateOnly),
		CheckOut:  checkOut.Format(time.DateOnly),
		Available: available,
	})
}

func (s *Server) setRoomStatusHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		if booking.IsNotFoundError(err) != nil {
			s.writeError(w, err, "resolve actor")

			return
		}

		s.badRequest(w, err)

		return
	}

	var req statusRequest
	if err = decode(r, &req); err != nil {
		s.badRequest(w, err)

		return
	}

	out, err := s.coordinator.SetStatus(r.Context(), r.PathValue("id"), req.Status, req.Reason, actor, false)
	if err != nil {
		s.writeError(w, err, "set room status")

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) retireRoomHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		if booking.IsNotFoundError(err) != nil {
			s.writeError(w, err, "resolve actor")

			return
		}

		s.badRequest(w, err)

		return
	}

	out, err := s.bManager.RetireRoom(r.Context(), r.PathValue("id"), r.URL.Query().Get("reason"), actor)
	if err != nil {
		s.writeError(w, err, "retire a room")

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) statusUpdatesHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.coordinator.ListStatusUpdates(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, "list status updates")

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) statisticsHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.stats.Report(r.Context())
	if err != nil {
		s.writeError(w, err, "build statistics")

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addRoutes(r *http.ServeMux) {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"POST /api/rooms/v1", s.addRoomHandler},
		{"GET /api/rooms/v1", s.listRoomsHandler},
		{"GET /api/rooms/v1/available", s.availableRoomsHandler},
		{"GET /api/rooms/v1/{id}", s.getRoomHandler},
		{"GET /api/rooms/v1/{id}/availability", s.roomAvailabilityHandler},
		{"PUT /api/rooms/v1/{id}/status", s.setRoomStatusHandler},
		{"DELETE /api/rooms/v1/{id}", s.retireRoomHandler},
		{"GET /api/rooms/v1/{id}/status-updates", s.statusUpdatesHandler},
		{"POST /api/reservations/v1", s.createReservationHandler},
		{"GET /api/reservations/v1/{id}", s.getReservationHandler},
		{"PATCH /api/reservations/v1/{id}", s.updateReservationHandler},
		{"POST /api/reservations/v1/{id}/cancel", s.cancelReservationHandler},
		{"POST /api/reservations/v1/{id}/confirm", s.confirmReservationHandler},
		{"GET /api/statistics/v1", s.statisticsHandler},
		{fmt.Sprintf("GET %s", s.conf.LivenessEndpoint), s.livenessHandler},
	}

	for _, route := range routes {
		r.Handle(
			route.pattern,
			s.applyMiddlewares(route.handler, s.loggerMiddleware(), s.tracingMiddleware(), s.recoverMiddleware()),
		)
	}
}
