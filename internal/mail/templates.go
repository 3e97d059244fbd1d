package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"campusbook/internal/models"
)

var roleTitles = map[string]string{
	models.RoleAdviser:         "Adviser",
	models.RoleDean:            "Dean",
	models.RoleSchoolPresident: "School President",
	models.RoleSchoolDirector:  "School Director",
}

// RoleTitle returns a human-readable title for a signatory role.
func RoleTitle(role string) string {
	if title, ok := roleTitles[role]; ok {
		return title
	}
	return role
}

// Renderer builds the outbound approval emails. BaseURL is the public origin
// the approve/deny links are rooted at, without a trailing slash.
type Renderer struct {
	BaseURL string
}

func NewRenderer(baseURL string) *Renderer {
	return &Renderer{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (r *Renderer) ApproveLink(s *models.Signatory) string {
	return fmt.Sprintf("%s/signatory-approval/%d?token=%s", r.BaseURL, s.ID, s.Token)
}

func (r *Renderer) DenyLink(s *models.Signatory) string {
	return fmt.Sprintf("%s/signatory-denial/%d?token=%s", r.BaseURL, s.ID, s.Token)
}

type bookingSummary struct {
	FacilityName  string
	RequesterName string
	StartsAt      string
	EndsAt        string
	Purpose       string
	Participants  int64
	Equipment     []string
}

type signatoryRequestData struct {
	RoleTitle   string
	Booking     bookingSummary
	ApproveLink string
	DenyLink    string
}

type priorApproval struct {
	RoleTitle string
	Name      string
	DecidedAt string
}

type directorEscalationData struct {
	Booking     bookingSummary
	Approvals   []priorApproval
	ApproveLink string
	DenyLink    string
}

const timeLayout = "Mon, 02 Jan 2006 15:04"

func summarize(b *models.Booking) bookingSummary {
	s := bookingSummary{
		FacilityName:  b.FacilityName,
		RequesterName: b.RequesterName,
		StartsAt:      b.StartsAt.Format(timeLayout),
		EndsAt:        b.EndsAt.Format(timeLayout),
		Purpose:       b.Purpose,
		Participants:  b.Participants,
	}
	for _, line := range b.Equipment {
		s.Equipment = append(s.Equipment, fmt.Sprintf("%s x%d", line.Name, line.Quantity))
	}
	return s
}

var signatoryRequestTmpl = template.Must(template.New("signatory_request").Parse(`<html><body>
<p>Dear {{.RoleTitle}},</p>
<p>A facility booking is awaiting your approval.</p>
<table cellpadding="4">
<tr><td><b>Facility</b></td><td>{{.Booking.FacilityName}}</td></tr>
<tr><td><b>Requested by</b></td><td>{{.Booking.RequesterName}}</td></tr>
<tr><td><b>From</b></td><td>{{.Booking.StartsAt}}</td></tr>
<tr><td><b>To</b></td><td>{{.Booking.EndsAt}}</td></tr>
<tr><td><b>Purpose</b></td><td>{{.Booking.Purpose}}</td></tr>
<tr><td><b>Participants</b></td><td>{{.Booking.Participants}}</td></tr>
{{if .Booking.Equipment}}<tr><td><b>Equipment</b></td><td>{{range .Booking.Equipment}}{{.}}<br>{{end}}</td></tr>{{end}}
</table>
<p>
<a href="{{.ApproveLink}}">Approve</a> &nbsp;|&nbsp; <a href="{{.DenyLink}}">Deny</a>
</p>
<p>This link is personal. Please do not forward this message.</p>
</body></html>`))

var directorEscalationTmpl = template.Must(template.New("director_escalation").Parse(`<html><body>
<p>Dear School Director,</p>
<p>All prior signatories have approved the booking below. Your decision finalizes it.</p>
<table cellpadding="4">
<tr><td><b>Facility</b></td><td>{{.Booking.FacilityName}}</td></tr>
<tr><td><b>Requested by</b></td><td>{{.Booking.RequesterName}}</td></tr>
<tr><td><b>From</b></td><td>{{.Booking.StartsAt}}</td></tr>
<tr><td><b>To</b></td><td>{{.Booking.EndsAt}}</td></tr>
<tr><td><b>Purpose</b></td><td>{{.Booking.Purpose}}</td></tr>
<tr><td><b>Participants</b></td><td>{{.Booking.Participants}}</td></tr>
{{if .Booking.Equipment}}<tr><td><b>Equipment</b></td><td>{{range .Booking.Equipment}}{{.}}<br>{{end}}</td></tr>{{end}}
</table>
<p><b>Approvals so far:</b></p>
<ul>
{{range .Approvals}}<li>{{.RoleTitle}}{{if .Name}} ({{.Name}}){{end}} &mdash; {{.DecidedAt}}</li>
{{end}}</ul>
<p>
<a href="{{.ApproveLink}}">Approve</a> &nbsp;|&nbsp; <a href="{{.DenyLink}}">Deny</a>
</p>
</body></html>`))

// SignatoryRequest renders the initial approval request for one signatory.
func (r *Renderer) SignatoryRequest(booking *models.Booking, signatory *models.Signatory) (subject, body string, err error) {
	data := signatoryRequestData{
		RoleTitle:   RoleTitle(signatory.Role),
		Booking:     summarize(booking),
		ApproveLink: r.ApproveLink(signatory),
		DenyLink:    r.DenyLink(signatory),
	}
	var buf bytes.Buffer
	if err := signatoryRequestTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render signatory request: %w", err)
	}
	subject = fmt.Sprintf("Approval needed: %s, %s", booking.FacilityName, booking.StartsAt.Format("02 Jan 2006"))
	return subject, buf.String(), nil
}

// DirectorEscalation renders the final-decision request for the director,
// listing who already approved and when.
func (r *Renderer) DirectorEscalation(booking *models.Booking, reservation *models.Reservation, director *models.Signatory) (subject, body string, err error) {
	data := directorEscalationData{
		Booking:     summarize(booking),
		ApproveLink: r.ApproveLink(director),
		DenyLink:    r.DenyLink(director),
	}
	for i := range reservation.Signatories {
		s := &reservation.Signatories[i]
		if s.Role == models.RoleSchoolDirector || s.Status != models.SignatoryApproved {
			continue
		}
		decided := ""
		if s.DecidedAt != nil {
			decided = s.DecidedAt.Format(timeLayout)
		}
		data.Approvals = append(data.Approvals, priorApproval{
			RoleTitle: RoleTitle(s.Role),
			Name:      s.Name,
			DecidedAt: decided,
		})
	}
	var buf bytes.Buffer
	if err := directorEscalationTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render director escalation: %w", err)
	}
	subject = fmt.Sprintf("Final approval needed: %s, %s", booking.FacilityName, booking.StartsAt.Format("02 Jan 2006"))
	return subject, buf.String(), nil
}
