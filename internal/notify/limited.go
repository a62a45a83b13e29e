package notify

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited reports a send refused by Limited.
var ErrRateLimited = errors.New("notify: rate limit exceeded")

// Limited caps the send rate of the wrapped Sender. Sends over the limit
// fail immediately rather than wait, so a misconfigured rule cannot flood
// recipients.
type Limited struct {
	next    Sender
	limiter *rate.Limiter
}

// NewLimited allows perMinute sends per minute, all of which may go out at
// once. A non-positive perMinute returns next unwrapped.
func NewLimited(next Sender, perMinute int) Sender {
	if perMinute <= 0 {
		return next
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	}
}

func (l *Limited) Send(ctx context.Context, msg Message) error {
	if !l.limiter.Allow() {
		return ErrRateLimited
	}
	return l.next.Send(ctx, msg)
}
