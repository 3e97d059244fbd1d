package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campusbook/internal/database"
	"campusbook/internal/metrics"
	"campusbook/internal/models"
)

// handleSignatoryApproval and handleSignatoryDenial are the endpoints behind
// the links mailed to signatories. They are unauthenticated by design: the
// per-signatory token in the query string is the credential.

func (s *HTTPServer) handleSignatoryApproval(w http.ResponseWriter, r *http.Request) {
	s.handleSignatoryLink(w, r, "/signatory-approval/", models.DecisionApprove)
}

func (s *HTTPServer) handleSignatoryDenial(w http.ResponseWriter, r *http.Request) {
	s.handleSignatoryLink(w, r, "/signatory-denial/", models.DecisionDeny)
}

func (s *HTTPServer) handleSignatoryLink(w http.ResponseWriter, r *http.Request, prefix, decision string) {
	if r.Method != http.MethodGet {
		writeHTML(w, http.StatusMethodNotAllowed, "Not allowed", "This link only supports GET requests.")
		return
	}

	if !s.allowLink(r) {
		metrics.IncLinkThrottled()
		writeHTML(w, http.StatusTooManyRequests, "Too many requests", "Please wait a minute and open the link again.")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, prefix)
	signatoryID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || signatoryID <= 0 {
		writeHTML(w, http.StatusNotFound, "Link not found", "This approval link is malformed.")
		return
	}

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeHTML(w, http.StatusForbidden, "Link rejected", "The approval token is missing.")
		return
	}

	_, err = s.svc.SignatoryDecide(r.Context(), signatoryID, token, decision)
	switch {
	case err == nil:
		http.Redirect(w, r, "/approval/success", http.StatusSeeOther)
	case err == database.ErrForbidden:
		writeHTML(w, http.StatusForbidden, "Link rejected", "The approval token does not match.")
	case err == database.ErrSignatoryNotFound:
		writeHTML(w, http.StatusNotFound, "Link not found", "This approval link does not exist anymore.")
	default:
		s.logger.Error().Err(err).Int64("signatory_id", signatoryID).Msg("Signatory decision failed")
		writeHTML(w, http.StatusInternalServerError, "Something went wrong", "Please try again later.")
	}
}

func (s *HTTPServer) handleApprovalSuccess(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, http.StatusOK, "Decision recorded",
		"Thank you. Your decision has been recorded; no further action is needed. "+
			"If you already decided earlier, nothing has changed.")
}

// allowLink asks the guard whether this caller may hit the link endpoints.
// The guard failing open would defeat its purpose, so errors deny.
func (s *HTTPServer) allowLink(r *http.Request) bool {
	if s.guard == nil {
		return true
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		host = r.RemoteAddr
	}

	window := time.Duration(s.approvals.LinkRateWindow) * time.Second
	allowed, err := s.guard.Allow(r.Context(), "link:"+host, s.approvals.LinkRateLimit, window)
	if err != nil {
		s.logger.Error().Err(err).Msg("Link guard error")
		return false
	}
	return allowed
}

func writeHTML(w http.ResponseWriter, statusCode int, title, text string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte("<html><head><title>" + title + "</title></head><body><h2>" + title + "</h2><p>" + text + "</p></body></html>"))
}
