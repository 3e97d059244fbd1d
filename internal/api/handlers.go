package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campusbook/internal/database"
	"campusbook/internal/models"
	"campusbook/internal/service"
)

type submitBookingBody struct {
	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
	Phone          string `json:"phone"`
	FacilityID     int64  `json:"facility_id"`
	StartsAt       string `json:"starts_at"`
	EndsAt         string `json:"ends_at"`
	Purpose        string `json:"purpose"`
	Participants   int64  `json:"participants"`
	Policy         string `json:"policy"`
	AdviserEmail   string `json:"adviser_email"`
	DeanEmail      string `json:"dean_email"`
	Equipment      []struct {
		EquipmentID int64 `json:"equipment_id"`
		Quantity    int64 `json:"quantity"`
	} `json:"equipment"`
	Attachments []struct {
		FileName string `json:"file_name"`
		FileURL  string `json:"file_url"`
	} `json:"attachments"`
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitBooking(w, r)
	case http.MethodGet:
		s.handleListBookings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var body submitBookingBody
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if body.RequesterName == "" || body.RequesterEmail == "" {
		writeError(w, http.StatusBadRequest, "requester_name and requester_email are required")
		return
	}
	if body.Purpose == "" {
		writeError(w, http.StatusBadRequest, "purpose is required")
		return
	}

	startsAt, err := parseTimestamp(body.StartsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid starts_at; expected RFC 3339")
		return
	}
	endsAt, err := parseTimestamp(body.EndsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ends_at; expected RFC 3339")
		return
	}

	req := service.SubmitBookingRequest{
		RequesterName:  body.RequesterName,
		RequesterEmail: body.RequesterEmail,
		Phone:          body.Phone,
		FacilityID:     body.FacilityID,
		StartsAt:       startsAt,
		EndsAt:         endsAt,
		Purpose:        body.Purpose,
		Participants:   body.Participants,
		Policy:         body.Policy,
		AdviserEmail:   body.AdviserEmail,
		DeanEmail:      body.DeanEmail,
	}
	for _, line := range body.Equipment {
		req.Equipment = append(req.Equipment, models.EquipmentLine{EquipmentID: line.EquipmentID, Quantity: line.Quantity})
	}
	for _, att := range body.Attachments {
		req.Attachments = append(req.Attachments, models.Attachment{FileName: att.FileName, FileURL: att.FileURL})
	}

	booking, err := s.svc.SubmitBooking(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		bookings, err := s.svc.GetBookingsByStatus(r.Context(), status)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.svc.GetBookingsByDateRange(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/bookings/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.SplitN(rest, "/", 2)

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleGetBooking(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.handleCancelBooking(w, r, id)
	case action == "approve" && r.Method == http.MethodPost:
		s.handleAdminApprove(w, r, id)
	case action == "deny" && r.Method == http.MethodPost:
		s.handleAdminDeny(w, r, id)
	case action == "finalize" && r.Method == http.MethodPost:
		s.handleAdminFinalize(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request, id int64) {
	booking, err := s.svc.GetBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]any{"booking": booking}
	if reservation, err := s.svc.GetReservation(r.Context(), id); err == nil {
		resp["reservation"] = reservation
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request, id int64) {
	requesterID, err := strconv.ParseInt(r.URL.Query().Get("requester_id"), 10, 64)
	if err != nil || requesterID <= 0 {
		writeError(w, http.StatusBadRequest, "requester_id is required")
		return
	}

	if err := s.svc.CancelBooking(r.Context(), id, requesterID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

func (s *HTTPServer) handleAdminApprove(w http.ResponseWriter, r *http.Request, id int64) {
	changed, err := s.svc.AdminApprove(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
}

func (s *HTTPServer) handleAdminDeny(w http.ResponseWriter, r *http.Request, id int64) {
	changed, err := s.svc.DenyBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
}

func (s *HTTPServer) handleAdminFinalize(w http.ResponseWriter, r *http.Request, id int64) {
	changed, err := s.svc.FinalizeBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/v1/availability/"
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	facilityID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || facilityID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	availability, err := s.svc.CheckAvailability(r.Context(), facilityID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

func (s *HTTPServer) handleFacilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"facilities": s.svc.ListFacilities()})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export is not configured")
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := s.exporter.ExportBookings(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=bookings.xlsx")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, path)
}

// parseRange reads from/to query params; both RFC 3339 and bare dates are
// accepted. Defaults to the coming 30 days.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	fromStr := strings.TrimSpace(r.URL.Query().Get("from"))
	toStr := strings.TrimSpace(r.URL.Query().Get("to"))

	now := time.Now()
	from := now.Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, 30)

	var err error
	if fromStr != "" {
		if from, err = parseTimestamp(fromStr); err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from; expected RFC 3339 or YYYY-MM-DD")
		}
	}
	if toStr != "" {
		if to, err = parseTimestamp(toStr); err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to; expected RFC 3339 or YYYY-MM-DD")
		}
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("from must precede to")
	}
	return from, to, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrReservationNotFound),
		errors.Is(err, database.ErrSignatoryNotFound),
		errors.Is(err, database.ErrFacilityNotFound),
		errors.Is(err, database.ErrEquipmentNotFound),
		errors.Is(err, database.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrInvalidWindow),
		errors.Is(err, database.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrTerminalBooking),
		errors.Is(err, database.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
