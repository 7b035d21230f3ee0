package redisqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/authhub/internal/actorctx"
	"github.com/geocoder89/authhub/internal/jobs"
)

type enqueuer interface {
	Enqueue(ctx context.Context, j jobs.Job) error
}

// Notifier satisfies the email capability by queueing a job for cmd/worker
// instead of talking to SMTP on the request path.
type Notifier struct {
	q enqueuer
}

func NewNotifier(q enqueuer) *Notifier {
	return &Notifier{q: q}
}

func (n *Notifier) SendOtpEmail(ctx context.Context, to, code string) error {
	return n.enqueue(ctx, jobs.JobSendOtpEmail, jobs.SendOtpEmailPayload{
		Email:     to,
		Code:      code,
		RequestID: actorctx.RequestIDFrom(ctx),
	})
}

func (n *Notifier) SendResetLink(ctx context.Context, to, url string) error {
	return n.enqueue(ctx, jobs.JobSendResetLink, jobs.SendResetLinkPayload{
		Email:     to,
		URL:       url,
		RequestID: actorctx.RequestIDFrom(ctx),
	})
}

func (n *Notifier) enqueue(ctx context.Context, t jobs.JobType, payload any) error {
	b, err := jobs.EncodePayload(t, payload)

	if err != nil {
		return err
	}

	j, err := jobs.NewJob(t, b, time.Time{})

	if err != nil {
		return err
	}

	err = n.q.Enqueue(ctx, j)

	if err != nil {
		return fmt.Errorf("enqueue %s: %w", t, err)
	}

	return nil
}
