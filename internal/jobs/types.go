package jobs

type JobType string

const (
	JobSendOtpEmail  JobType = "send_otp_email"
	JobSendResetLink JobType = "send_reset_link"
)

// check to see if the job type is a known constant
func (t JobType) IsValid() bool {
	switch t {
	case JobSendOtpEmail, JobSendResetLink:
		return true
	default:
		return false
	}
}
