package dispatch

import (
	"context"
	"strings"

	"github.com/propease/announce/internal/models"
	"github.com/propease/announce/internal/sender"
)

// WhatsApp template names and the announcement type that selects the
// event template.
const (
	templateCommunityEvent      = "community_event"
	templateGeneralAnnouncement = "general_announcement"
	typeCommunityEvent          = "community event"
)

// Defaults for event placeholders that could not be extracted from the
// announcement content.
const (
	defaultEventDate     = "upcoming date"
	defaultEventLocation = "location TBD"
)

// Senders is the outbound side of the channel dispatcher: one call per
// channel, error text taken from the downstream response.
type Senders interface {
	SendEmail(ctx context.Context, p sender.EmailPayload) error
	SendSMS(ctx context.Context, p sender.SMSPayload) error
	SendWhatsApp(ctx context.Context, p sender.WhatsAppPayload) error
}

// ChannelDispatcher formats and delivers one announcement message to
// one tenant over one channel.
type ChannelDispatcher struct {
	senders Senders
}

func NewChannelDispatcher(senders Senders) *ChannelDispatcher {
	return &ChannelDispatcher{senders: senders}
}

// Dispatch attempts delivery of a to contact over method. When the
// contact lacks the channel's address the channel is skipped without a
// result (attempted = false); otherwise exactly one MessageResult is
// returned, with Error set on failure.
func (d *ChannelDispatcher) Dispatch(ctx context.Context, a *models.Announcement, contact models.TenantContact, method string) (MessageResult, bool) {
	switch method {
	case models.ChannelEmail:
		if contact.Email == "" {
			return MessageResult{}, false
		}
		return d.result(method, contact.Email, contact.ID, d.sendEmail(ctx, a, contact)), true

	case models.ChannelSMS:
		if contact.PhoneNumber == "" {
			return MessageResult{}, false
		}
		return d.result(method, contact.PhoneNumber, contact.ID, d.sendSMS(ctx, a, contact)), true

	case models.ChannelWhatsApp:
		if contact.WhatsAppNumber == "" {
			return MessageResult{}, false
		}
		return d.result(method, contact.WhatsAppNumber, contact.ID, d.sendWhatsApp(ctx, a, contact)), true
	}

	return MessageResult{}, false
}

func (d *ChannelDispatcher) result(method, recipient, tenantID string, err error) MessageResult {
	res := MessageResult{Method: method, Recipient: recipient, TenantID: tenantID}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func (d *ChannelDispatcher) sendEmail(ctx context.Context, a *models.Announcement, contact models.TenantContact) error {
	firstName := contact.FirstName
	if firstName == "" {
		firstName = "Tenant"
	}

	return d.senders.SendEmail(ctx, sender.EmailPayload{
		Email:     contact.Email,
		Subject:   a.Title,
		Text:      a.Content,
		FirstName: firstName,
	})
}

func (d *ChannelDispatcher) sendSMS(ctx context.Context, a *models.Announcement, contact models.TenantContact) error {
	return d.senders.SendSMS(ctx, sender.SMSPayload{
		PhoneNumber: contact.PhoneNumber,
		Text:        a.Title + ": " + a.Content,
	})
}

func (d *ChannelDispatcher) sendWhatsApp(ctx context.Context, a *models.Announcement, contact models.TenantContact) error {
	template, placeholders := whatsappTemplate(a)

	return d.senders.SendWhatsApp(ctx, sender.WhatsAppPayload{
		PhoneNumber:  contact.WhatsAppNumber,
		TemplateName: template,
		Placeholders: placeholders,
	})
}

// whatsappTemplate selects the WhatsApp template and its placeholders.
// Community events extract an event date and location from the content
// by comma position; everything else uses the general template with the
// raw content.
func whatsappTemplate(a *models.Announcement) (string, []string) {
	if a.Type != typeCommunityEvent {
		return templateGeneralAnnouncement, []string{a.Title, a.Content}
	}

	date, location := parseEventDetails(a.Content)
	return templateCommunityEvent, []string{a.Title, date, location}
}

func parseEventDetails(content string) (string, string) {
	date := defaultEventDate
	location := defaultEventLocation

	parts := strings.Split(content, ",")
	if len(parts) > 0 {
		if v := strings.TrimSpace(parts[0]); v != "" {
			date = v
		}
	}
	if len(parts) > 1 {
		if v := strings.TrimSpace(parts[1]); v != "" {
			location = v
		}
	}

	return date, location
}
