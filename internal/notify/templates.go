package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Template names accepted by the send-email endpoint. Unknown names are
// rejected rather than silently falling back.
const (
	TemplateVenueConfirmation     = "venue-confirmation"
	TemplateKaraokeConfirmation   = "karaoke-confirmation"
	TemplateVenueInternal         = "venue-internal-notification"
	TemplateStaffInvite           = "staff-invite"
	TemplateOrganiserConfirmation = "occasion-organiser-confirmation"
	TemplateTicketConfirmation    = "occasion-ticket-confirmation"
)

var templates = map[string]*template.Template{
	TemplateVenueConfirmation:     template.Must(template.New(TemplateVenueConfirmation).Parse(venueConfirmationHTML)),
	TemplateKaraokeConfirmation:   template.Must(template.New(TemplateKaraokeConfirmation).Parse(karaokeConfirmationHTML)),
	TemplateVenueInternal:         template.Must(template.New(TemplateVenueInternal).Parse(venueInternalHTML)),
	TemplateStaffInvite:           template.Must(template.New(TemplateStaffInvite).Parse(staffInviteHTML)),
	TemplateOrganiserConfirmation: template.Must(template.New(TemplateOrganiserConfirmation).Parse(organiserConfirmationHTML)),
	TemplateTicketConfirmation:    template.Must(template.New(TemplateTicketConfirmation).Parse(ticketConfirmationHTML)),
}

// RenderTemplate produces the email body for a named template. The data map
// is coerced to strings so callers can pass numbers or nil without the
// template engine printing placeholder noise.
func RenderTemplate(name string, data map[string]interface{}) (string, error) {
	tmpl, ok := templates[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("unknown email template: %s", name)
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, normalize(data)); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return out.String(), nil
}

// SubjectFor returns the default subject line for a template.
func SubjectFor(name string, data map[string]interface{}) string {
	fields := normalize(data)
	switch strings.ToLower(name) {
	case TemplateKaraokeConfirmation:
		return "Karaoke Booking Confirmation - Manor Perth"
	case TemplateStaffInvite:
		return "You've been invited to GM Staff Portal"
	case TemplateOrganiserConfirmation:
		return "Your Occasion is Ready - " + orDefault(fields["occasionName"], "Manor")
	case TemplateTicketConfirmation:
		return "Ticket Confirmed - " + orDefault(fields["occasionName"], "Manor")
	default:
		return "Booking Confirmation - Manor Perth"
	}
}

// DeriveRecipient picks the destination address out of the template data when
// the caller did not set one explicitly.
func DeriveRecipient(data map[string]interface{}) string {
	fields := normalize(data)
	for _, key := range []string{"customerEmail", "inviteEmail"} {
		if addr := fields[key]; strings.Contains(addr, "@") {
			return addr
		}
	}
	return ""
}

func normalize(data map[string]interface{}) map[string]string {
	fields := make(map[string]string, len(data))
	for key, value := range data {
		if value == nil {
			continue
		}
		fields[key] = fmt.Sprint(value)
	}

	if fields["venueDisplayName"] == "" {
		if fields["venue"] == "hippie" {
			fields["venueDisplayName"] = "Hippie"
		} else {
			fields["venueDisplayName"] = "Manor"
		}
	}
	for _, key := range []string{"bookingDate", "occasionDate"} {
		if raw := fields[key]; raw != "" {
			fields[key+"Display"] = formatDateAU(raw)
		}
	}
	return fields
}

// formatDateAU renders an ISO date the way the venue sites show it,
// e.g. "Friday, 14 March 2026". Unparseable input passes through as-is.
func formatDateAU(raw string) string {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.Format("Monday, 2 January 2006")
		}
	}
	return raw
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

const venueConfirmationHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Booking Confirmation - Manor Perth</title></head>
<body style="font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;max-width:600px;margin:0 auto;padding:20px;color:#333;">
  <div style="background:white;padding:40px;border-radius:12px;">
    <div style="text-align:center;margin-bottom:30px;">
      <div style="font-size:28px;font-weight:bold;color:#8B4513;">MANOR</div>
      <h1 style="margin:0;font-size:24px;">Booking Enquiry Received</h1>
    </div>
    <p>Hi {{.customerName}},</p>
    <p>Thank you for your venue booking enquiry with Manor Perth! We've received your request and our team will review it within the next two business days.</p>
    <div style="border:2px solid #dee2e6;border-radius:12px;padding:20px;text-align:center;margin:25px 0;">
      <div style="font-size:14px;color:#6c757d;text-transform:uppercase;">Reference Code</div>
      <div style="font-size:24px;font-weight:bold;font-family:'Courier New',monospace;letter-spacing:2px;">{{.referenceCode}}</div>
    </div>
    <div style="background:#f8f9fa;border-radius:8px;padding:20px;margin:25px 0;">
      <h3 style="margin-top:0;">Booking Details</h3>
      <p><strong>Venue:</strong> {{.venueDisplayName}}</p>
      <p><strong>Date:</strong> {{.bookingDateDisplay}}</p>
      <p><strong>Time:</strong> {{.startTime}} - {{.endTime}}</p>
      <p><strong>Guests:</strong> {{.guestCount}} people</p>
    </div>
    <p>Please keep your reference code handy for any future correspondence about this booking.</p>
    <p style="font-size:12px;color:#adb5bd;">This email was sent to {{.customerEmail}} in response to your booking enquiry.</p>
  </div>
</body>
</html>`

const karaokeConfirmationHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Karaoke Booking Confirmation - Manor Perth</title></head>
<body style="font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;max-width:600px;margin:0 auto;padding:20px;color:#333;">
  <div style="background:white;padding:40px;border-radius:12px;">
    <div style="text-align:center;margin-bottom:30px;">
      <div style="font-size:28px;font-weight:bold;color:#8B4513;">MANOR</div>
      <h1 style="margin:0;font-size:24px;">Karaoke Booking Confirmed!</h1>
    </div>
    <p>Hi {{.customerName}},</p>
    <p>Thanks for your Karaoke Booth booking at Manor, here are the details:</p>
    <div style="border:2px solid #dee2e6;border-radius:12px;padding:20px;text-align:center;margin:25px 0;">
      <div style="font-size:14px;color:#6c757d;text-transform:uppercase;">Reference Code</div>
      <div style="font-size:24px;font-weight:bold;font-family:'Courier New',monospace;letter-spacing:2px;">{{.referenceCode}}</div>
    </div>
    <div style="background:#f8f9fa;border-radius:8px;padding:20px;margin:25px 0;">
      <p><strong>Date:</strong> {{.bookingDate}}</p>
      <p><strong>Time:</strong> {{.startTime}} - {{.endTime}}</p>
      <p><strong>Capacity:</strong> {{.guestCount}} people</p>
    </div>
    {{if .guestListUrl}}
    <div style="background:#e7f3ff;border-left:4px solid #007bff;padding:20px;margin:25px 0;">
      <strong>Curate your guest list</strong><br/>
      Add the names of your guests so they're on the door when they arrive.
      <div style="margin-top:16px;text-align:center;">
        <a href="{{.guestListUrl}}" style="display:inline-block;padding:10px 18px;border-radius:999px;background-color:#0d6efd;color:#fff;text-decoration:none;font-weight:600;">Curate your guest list</a>
      </div>
    </div>
    {{end}}
    <p>10 minutes before your booking, head to the bar upstairs at Manor to check in and receive your wristbands.</p>
    <p>IG: @manorleederville<br/>FB: @manorleederville</p>
    <p style="font-size:12px;color:#adb5bd;">This email was sent to {{.customerEmail}} to confirm your karaoke booking.</p>
  </div>
</body>
</html>`

const venueInternalHTML = `<!DOCTYPE html><html><body style="font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;">
  <h2>New Venue Hire Enquiry</h2>
  <p><strong>Name:</strong> {{.customerName}}</p>
  <p><strong>Email:</strong> {{.customerEmail}}</p>
  <p><strong>Phone:</strong> {{.customerPhone}}</p>
  <p><strong>Reference:</strong> {{.referenceCode}}</p>
  <p><strong>Venue:</strong> {{.venue}}</p>
  <p><strong>Date:</strong> {{.bookingDateDisplay}}</p>
  <p><strong>Time:</strong> {{.startTime}} - {{.endTime}}</p>
  <p><strong>Guests:</strong> {{.guestCount}}</p>
  {{if .specialRequests}}<p><strong>Special Requests:</strong> {{.specialRequests}}</p>{{end}}
</body></html>`

const staffInviteHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>You're invited to GM Staff Portal</title></head>
<body style="margin:0;padding:0;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background-color:#0f172a;">
  <div style="max-width:480px;margin:40px auto;background-color:#1e293b;border-radius:16px;padding:40px 32px;text-align:center;">
    <div style="width:48px;height:48px;background-color:#fb923c;border-radius:12px;margin:0 auto 24px;line-height:48px;color:#fff;font-size:18px;font-weight:700;">GM</div>
    <h1 style="margin:0 0 32px 0;color:#f1f5f9;font-size:24px;">You're invited to the<br>GM Staff Portal</h1>
    <div style="background-color:#0f172a;border-radius:12px;border:1px solid #334155;padding:24px;text-align:left;">
      <p style="color:#cbd5e1;font-size:15px;">Hi there,</p>
      <p style="color:#94a3b8;font-size:14px;">{{if .invitedBy}}<strong style="color:#e2e8f0;">{{.invitedBy}}</strong> has{{else}}You have{{end}} invited you to access the GM Staff Portal. This is where your team manages bookings, operations, and reporting.</p>
      <p style="color:#94a3b8;font-size:14px;">Click the button below to create your account and set a password.</p>
      <div style="text-align:center;">
        <a href="{{.inviteUrl}}" style="display:inline-block;padding:14px 28px;background-color:#f97316;border-radius:8px;color:#fff;font-size:14px;font-weight:600;text-decoration:none;">Create your account</a>
      </div>
    </div>
    <p style="margin:24px 0 0 0;color:#64748b;font-size:12px;">If you did not expect this email, you can safely ignore it.</p>
  </div>
</body>
</html>`

const organiserConfirmationHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Occasion Created - {{.occasionName}}</title></head>
<body style="font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;max-width:600px;margin:0 auto;padding:20px;color:#333;">
  <div style="background:white;padding:40px;border-radius:12px;">
    <div style="text-align:center;margin-bottom:30px;">
      <div style="font-size:28px;font-weight:bold;color:#8B4513;">{{.venueDisplayName}}</div>
      <h1 style="margin:0;font-size:24px;">Your Occasion is Ready!</h1>
    </div>
    <div style="background:#6366f1;color:white;padding:20px;border-radius:8px;margin:20px 0;text-align:center;">
      <h2 style="margin:0;font-size:20px;">{{.occasionName}}</h2>
    </div>
    <p>Hi {{.organiserName}},</p>
    <p>Your occasion has been created! You can now manage your guest list and share the link with friends to purchase tickets.</p>
    <div style="background:#f8f9fa;border-radius:8px;padding:20px;margin:25px 0;">
      <h3 style="margin-top:0;">Occasion Details</h3>
      <p><strong>Venue:</strong> {{.venueDisplayName}}</p>
      <p><strong>Date:</strong> {{.occasionDateDisplay}}</p>
      <p><strong>Capacity:</strong> {{.capacity}} guests</p>
    </div>
    <div style="text-align:center;">
      <a href="{{.organiserUrl}}" style="display:inline-block;padding:14px 28px;background:#6366f1;color:white;text-decoration:none;border-radius:8px;font-weight:600;">Manage Your Guest List</a>
    </div>
    <p style="margin-top:30px;"><strong>What you can do:</strong></p>
    <ul>
      <li>Add and manage guest names for the door list</li>
      <li>Share a link with friends so they can purchase their own tickets</li>
      <li>Track how many spots are remaining</li>
    </ul>
  </div>
</body>
</html>`

const ticketConfirmationHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Ticket Confirmation - {{.occasionName}}</title></head>
<body style="font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;max-width:600px;margin:0 auto;padding:20px;color:#333;">
  <div style="background:white;padding:40px;border-radius:12px;">
    <div style="text-align:center;margin-bottom:30px;">
      <div style="font-size:28px;font-weight:bold;color:#8B4513;">{{.venueDisplayName}}</div>
      <h1 style="margin:0;font-size:24px;">Ticket Confirmed!</h1>
    </div>
    <p>Hi {{.customerName}},</p>
    <p>You're all set for <strong>{{.occasionName}}</strong>{{if .organiserName}} with {{.organiserName}}{{end}}!</p>
    <div style="border:2px solid #dee2e6;border-radius:12px;padding:20px;text-align:center;margin:25px 0;">
      <div style="font-size:14px;color:#6c757d;text-transform:uppercase;">Reference Code</div>
      <div style="font-size:24px;font-weight:bold;font-family:'Courier New',monospace;letter-spacing:2px;">{{.referenceCode}}</div>
    </div>
    <div style="background:#f8f9fa;border-radius:8px;padding:20px;margin:25px 0;">
      <h3 style="margin-top:0;">Booking Details</h3>
      <p><strong>Occasion:</strong> {{.occasionName}}</p>
      <p><strong>Venue:</strong> {{.venueDisplayName}}</p>
      <p><strong>Date:</strong> {{.occasionDateDisplay}}</p>
      <p><strong>Tickets:</strong> {{.ticketQuantity}} &times; ${{.ticketPrice}}</p>
      <p><strong>Total Paid:</strong> ${{.totalAmount}}</p>
    </div>
    {{if .guestListUrl}}
    <div style="background:#e7f3ff;border-left:4px solid #007bff;padding:20px;margin:25px 0;">
      <strong>Add your guests to the door list</strong><br/>
      Enter the names of everyone in your group so they're on the door when they arrive.
      <div style="margin-top:16px;text-align:center;">
        <a href="{{.guestListUrl}}" style="display:inline-block;padding:14px 28px;background:#0d6efd;color:white;text-decoration:none;border-radius:8px;font-weight:600;">Manage Guest List</a>
      </div>
    </div>
    {{end}}
    <p>Make sure everyone brings valid ID. See you there!</p>
    <p style="font-size:12px;color:#adb5bd;">This email was sent to {{.customerEmail}} to confirm your ticket purchase.</p>
  </div>
</body>
</html>`
