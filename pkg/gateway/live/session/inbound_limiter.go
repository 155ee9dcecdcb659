package session

import (
	"time"

	"golang.org/x/time/rate"
)

// inboundAudioLimiter caps microphone audio by frames per second and bytes
// per second, each with a burst allowance of burstSeconds worth of traffic.
type inboundAudioLimiter struct {
	now    func() time.Time
	frames *rate.Limiter
	bytes  *rate.Limiter
}

func newInboundAudioLimiter(now func() time.Time, fps int, bps int64, burstSeconds int) *inboundAudioLimiter {
	if fps <= 0 && bps <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	if burstSeconds <= 0 {
		burstSeconds = 1
	}

	l := &inboundAudioLimiter{now: now}
	start := now()
	if fps > 0 {
		l.frames = rate.NewLimiter(rate.Limit(fps), fps*burstSeconds)
		l.frames.AllowN(start, 0)
	}
	if bps > 0 {
		l.bytes = rate.NewLimiter(rate.Limit(bps), int(bps)*burstSeconds)
		l.bytes.AllowN(start, 0)
	}
	return l
}

// Allow consumes one frame of frameBytes, or nothing when either budget
// would be exceeded.
func (l *inboundAudioLimiter) Allow(frameBytes int) bool {
	if l == nil {
		return true
	}
	if frameBytes < 0 {
		frameBytes = 0
	}
	now := l.now()

	var frame *rate.Reservation
	if l.frames != nil {
		frame = l.frames.ReserveN(now, 1)
		if !frame.OK() || frame.DelayFrom(now) > 0 {
			frame.CancelAt(now)
			return false
		}
	}
	if l.bytes != nil {
		r := l.bytes.ReserveN(now, frameBytes)
		if !r.OK() || r.DelayFrom(now) > 0 {
			r.CancelAt(now)
			if frame != nil {
				frame.CancelAt(now)
			}
			return false
		}
	}
	return true
}
