package jobs

import "strings"

// ValidatePayload checks that payload matches t and carries the fields the
// worker needs.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case JobSendOtpEmail:
		var p SendOtpEmailPayload
		switch v := payload.(type) {
		case SendOtpEmailPayload:
			p = v
		case *SendOtpEmailPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.Email) == "" || trim(p.Code) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	case JobSendResetLink:
		var p SendResetLinkPayload
		switch v := payload.(type) {
		case SendResetLinkPayload:
			p = v
		case *SendResetLinkPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.Email) == "" || trim(p.URL) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
