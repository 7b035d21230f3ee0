package jobs

import (
	"encoding/json"
	"fmt"
)

func EncodePayload(t JobType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	err := ValidatePayload(t, payload)

	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals job.Payload into the correct typed payload struct.
func DecodePayload(j Job) (any, error) {
	if !j.Type.IsValid() {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	var (
		out any
		err error
	)

	switch j.Type {
	case JobSendOtpEmail:
		var p SendOtpEmailPayload
		err = json.Unmarshal(j.Payload, &p)
		out = p

	case JobSendResetLink:
		var p SendResetLinkPayload
		err = json.Unmarshal(j.Payload, &p)
		out = p

	default:
		return nil, ErrInvalidJobType
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	err = ValidatePayload(j.Type, out)

	if err != nil {
		return nil, err
	}

	return out, nil
}
