package models

// TenantContact is the per-tenant projection the dispatch pipeline works
// with. A contact field left empty means the corresponding channel is
// skipped for this tenant.
type TenantContact struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Email          string `json:"email,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	WhatsAppNumber string `json:"whatsapp_number,omitempty"`
}
