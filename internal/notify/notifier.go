package notify

import (
	"context"
	"fmt"
	"strings"

	"gm-occasions/internal/config"
	"gm-occasions/internal/logger"
	"gm-occasions/internal/models"
)

// InternalStatus reports the outcome of the staff fan-out copy of an email.
type InternalStatus string

const (
	InternalSent    InternalStatus = "sent"
	InternalSkipped InternalStatus = "skipped"
	InternalFailed  InternalStatus = "failed"
)

// SendResult is returned by the generic template endpoint.
type SendResult struct {
	MessageID string         `json:"id"`
	Internal  InternalStatus `json:"internal"`
}

// Service renders templates and delivers them through Resend.
type Service struct {
	resend *ResendClient
	email  config.EmailConfig
	links  config.LinkConfig
	log    *logger.Logger
}

func NewService(resend *ResendClient, email config.EmailConfig, links config.LinkConfig, log *logger.Logger) *Service {
	return &Service{resend: resend, email: email, links: links, log: log}
}

// SendTemplated handles a caller-supplied template request: fills in the
// recipient, subject and sender when absent, renders the body and delivers
// it. A venue-confirmation additionally fans out an internal copy to staff.
func (s *Service) SendTemplated(ctx context.Context, req models.SendEmailRequest) (*SendResult, error) {
	name := strings.ToLower(req.Template)
	if name == "" {
		name = TemplateVenueConfirmation
	}

	to := req.To
	if to == "" {
		to = DeriveRecipient(req.Data)
	}
	if to == "" {
		return nil, ErrMissingRecipient
	}

	subject := req.Subject
	if subject == "" {
		subject = SubjectFor(name, req.Data)
	}
	from := req.From
	if from == "" {
		from = s.defaultFrom(name)
	}

	html, err := RenderTemplate(name, req.Data)
	if err != nil {
		return nil, err
	}

	id, err := s.resend.Send(ctx, resendEmail{
		From:    from,
		To:      to,
		Subject: subject,
		HTML:    html,
		ReplyTo: req.ReplyTo,
	})
	if err != nil {
		return nil, err
	}

	result := &SendResult{MessageID: id, Internal: InternalSkipped}
	if name == TemplateVenueConfirmation {
		result.Internal = s.sendInternalCopy(ctx, from, req)
	}
	return result, nil
}

func (s *Service) sendInternalCopy(ctx context.Context, from string, req models.SendEmailRequest) InternalStatus {
	if s.email.InternalTo == "" {
		return InternalSkipped
	}

	html, err := RenderTemplate(TemplateVenueInternal, req.Data)
	if err != nil {
		s.log.Error("EMAIL", fmt.Sprintf("internal notification render failed: %v", err))
		return InternalFailed
	}

	fields := normalize(req.Data)
	subject := fmt.Sprintf("New Venue Enquiry: %s (%s)",
		orDefault(fields["customerName"], "Customer"),
		orDefault(fields["referenceCode"], "ref"))

	replyTo := req.ReplyTo
	if replyTo == "" {
		replyTo = fields["customerEmail"]
	}

	if _, err := s.resend.Send(ctx, resendEmail{
		From:    from,
		To:      s.email.InternalTo,
		Subject: subject,
		HTML:    html,
		ReplyTo: replyTo,
	}); err != nil {
		s.log.Error("EMAIL", fmt.Sprintf("internal notification failed: %v", err))
		return InternalFailed
	}
	return InternalSent
}

// TicketConfirmed emails a purchaser their reference code and guest list
// link after a paid admission.
func (s *Service) TicketConfirmed(ctx context.Context, booking, occasion *models.Booking) error {
	data := map[string]interface{}{
		"customerName":   booking.CustomerName,
		"customerEmail":  booking.CustomerEmail,
		"referenceCode":  booking.ReferenceCode,
		"occasionName":   occasion.OccasionName,
		"occasionDate":   occasion.BookingDate,
		"venue":          occasion.Venue,
		"organiserName":  occasion.CustomerName,
		"ticketQuantity": booking.TicketQuantity,
		"ticketPrice":    formatDollars(occasion.TicketPriceCents),
		"totalAmount":    formatDollars(booking.TotalAmountCents),
		"guestListUrl":   s.links.GuestListURL(booking.GuestListToken),
	}

	_, err := s.SendTemplated(ctx, models.SendEmailRequest{
		Template: TemplateTicketConfirmation,
		Data:     data,
	})
	return err
}

// OccasionCreated emails the organiser their management link.
func (s *Service) OccasionCreated(ctx context.Context, occasion *models.Booking) error {
	data := map[string]interface{}{
		"organiserName": occasion.CustomerName,
		"customerEmail": occasion.CustomerEmail,
		"occasionName":  occasion.OccasionName,
		"occasionDate":  occasion.BookingDate,
		"venue":         occasion.Venue,
		"capacity":      occasion.Capacity,
		"organiserUrl":  s.links.OrganiserURL(occasion.Venue, occasion.OrganiserToken),
	}

	_, err := s.SendTemplated(ctx, models.SendEmailRequest{
		Template: TemplateOrganiserConfirmation,
		Data:     data,
	})
	return err
}

func (s *Service) defaultFrom(template string) string {
	if template == TemplateStaffInvite {
		return s.email.StaffFrom
	}
	return s.email.DefaultFrom
}

func formatDollars(cents int) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
