package dispatch

// Methods recorded on a MessageResult. Channel results carry the
// channel name; failures that occur while resolving the audience carry
// MethodResolution and are keyed by target name, since no tenant has
// been identified yet.
const MethodResolution = "resolution"

// MessageResult records the outcome of one delivery attempt, or of one
// failed audience resolution step.
type MessageResult struct {
	Method    string `json:"method"`
	Recipient string `json:"recipient"`
	TenantID  string `json:"tenant_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchResult accumulates the outcome of one processed batch.
// Sent/Failed hold per-message results; SuccessTenants/FailureTenants
// are per-tenant rollups (a tenant counts as a success when at least
// one of its messages was delivered, as a failure when every attempted
// message failed). Tenants whose channels were all skipped land in
// neither bucket.
type BatchResult struct {
	Sent           []MessageResult
	Failed         []MessageResult
	SuccessTenants int
	FailureTenants int
}
