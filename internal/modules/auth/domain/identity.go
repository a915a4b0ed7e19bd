package domain

// Reason is the internal tag explaining an admission decision.
// It is logged, never sent to the client.
type Reason string

const (
	ReasonMissingHash      Reason = "missing_hash"
	ReasonBadHash          Reason = "bad_hash"
	ReasonMissingSignature Reason = "missing_signature"
	ReasonBadSignatureB64  Reason = "bad_signature_b64"
	ReasonBadSignature     Reason = "bad_signature"
	ReasonBadAuthDate      Reason = "bad_auth_date"
	ReasonAuthDateTooOld   Reason = "auth_date_too_old"
	ReasonBadUserJSON      Reason = "bad_user_json"
	ReasonMissingUser      Reason = "missing_user"
	ReasonOKHash           Reason = "ok_hash"
	ReasonOKSignature      Reason = "ok_signature"
)

// Identity is the player described by the user field of initData
type Identity struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`

	// StartParam is the deep-link source, taken from the top level of initData
	StartParam string `json:"-"`
}

// Result is the outcome of validating one credential
type Result struct {
	Accepted bool
	Identity *Identity
	Reason   Reason
}

// Reject builds a failed result
func Reject(reason Reason) Result {
	return Result{Reason: reason}
}
