package sender

// EmailPayload is the request body for the send-email function
type EmailPayload struct {
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
	FirstName string `json:"firstName"`
}

// SMSPayload is the request body for the send-sms function
type SMSPayload struct {
	PhoneNumber string `json:"phoneNumber"`
	Text        string `json:"text"`
}

// WhatsAppPayload is the request body for the send-whatsapp function
type WhatsAppPayload struct {
	PhoneNumber  string   `json:"phoneNumber"`
	TemplateName string   `json:"templateName"`
	Placeholders []string `json:"placeholders"`
}
