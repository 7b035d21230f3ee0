package jobs

// SendOtpEmailPayload carries the plaintext code to the mail worker. It only
// lives in the queue until the email is sent or the job is dead-lettered.
type SendOtpEmailPayload struct {
	Email     string `json:"email"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"` // optional: correlation
}

// SendResetLinkPayload carries the full reset URL including its token.
type SendResetLinkPayload struct {
	Email     string `json:"email"`
	URL       string `json:"url"`
	RequestID string `json:"requestId,omitempty"`
}
