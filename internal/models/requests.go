package models

// PayAndBookRequest is the typed body of POST /occasion-pay-and-book.
// Unknown or malformed shapes are rejected at the boundary before they can
// reach the admission core.
type PayAndBookRequest struct {
	ShareToken     string `json:"shareToken"`
	CustomerName   string `json:"customerName"`
	CustomerEmail  string `json:"customerEmail,omitempty"`
	CustomerPhone  string `json:"customerPhone,omitempty"`
	TicketQuantity int    `json:"ticketQuantity"`
	PaymentToken   string `json:"paymentToken"`
}

type PayAndBookResponse struct {
	Success        bool   `json:"success"`
	BookingID      string `json:"bookingId,omitempty"`
	ReferenceCode  string `json:"referenceCode,omitempty"`
	GuestListToken string `json:"guestListToken,omitempty"`
	PaymentID      string `json:"paymentId,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SendEmailRequest is the typed body of POST /send-email. Template selects
// one of the fixed rendering functions; recipient falls back to
// data.customerEmail / data.inviteEmail when To is not set.
type SendEmailRequest struct {
	Template string                 `json:"template"`
	Data     map[string]interface{} `json:"data"`
	To       string                 `json:"to,omitempty"`
	Subject  string                 `json:"subject,omitempty"`
	From     string                 `json:"from,omitempty"`
	ReplyTo  string                 `json:"replyTo,omitempty"`
}

// CreateOccasionRequest is the staff dashboard body for creating an occasion.
type CreateOccasionRequest struct {
	Venue            string `json:"venue"`
	Name             string `json:"name"`
	OccasionDate     string `json:"occasion_date"`
	Capacity         int    `json:"capacity"`
	TicketPriceCents int    `json:"ticket_price_cents"`
	OrganiserName    string `json:"organiser_name,omitempty"`
	OrganiserEmail   string `json:"organiser_email,omitempty"`
	OrganiserPhone   string `json:"organiser_phone,omitempty"`
	Notes            string `json:"notes,omitempty"`
	SendEmail        bool   `json:"send_email,omitempty"`
}

// UpdateOccasionRequest carries partial updates; nil fields are left alone.
// Tokens are immutable and deliberately absent.
type UpdateOccasionRequest struct {
	Name             *string `json:"name,omitempty"`
	OccasionDate     *string `json:"occasion_date,omitempty"`
	Capacity         *int    `json:"capacity,omitempty"`
	TicketPriceCents *int    `json:"ticket_price_cents,omitempty"`
	OrganiserName    *string `json:"organiser_name,omitempty"`
	OrganiserEmail   *string `json:"organiser_email,omitempty"`
	OrganiserPhone   *string `json:"organiser_phone,omitempty"`
	Status           *string `json:"status,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

// OccasionFilters narrows the dashboard occasion list.
type OccasionFilters struct {
	Venue    string
	Status   string
	DateFrom string
	DateTo   string
}

// RenameGuestRequest renames (or inserts) the guest at a position on a
// booking's list.
type RenameGuestRequest struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
}
