package stcp

import "time"

const (
	// InitRTO is the bootstrap retransmission timeout used until the first
	// RTT sample arrives.
	InitRTO = time.Second
	// MinRTO and MaxRTO clamp the estimator's output.
	MinRTO = 100 * time.Millisecond
	MaxRTO = 10 * time.Second
	// MaxRetransmits is the number of transmissions (including the first)
	// after which the connection is declared failed.
	MaxRetransmits = 6
)

// rtoEstimator implements the exponentially-smoothed RTT/RTO estimator of
// spec section 4.3, with Karn's algorithm: only segments acknowledged after
// exactly one transmission contribute a sample.
type rtoEstimator struct {
	srtt    time.Duration
	rttvar  time.Duration
	rto     time.Duration
	// sampled is true once a genuine RTT sample has fed srtt/rttvar. It is
	// distinct from rtoSet because backoff (triggered by a pure timeout,
	// with no sample) can establish a concrete rto before any sample ever
	// arrives; in that case a later first sample must still take the
	// "first sample" branch below, not blend into an unset srtt.
	sampled bool
	// rtoSet is true once rto holds a concrete value, via either a sample
	// or a backoff.
	rtoSet bool
}

func (e *rtoEstimator) reset() { *e = rtoEstimator{} }

// current returns the RTO to use for the next deadline computation,
// defaulting to InitRTO before rto has ever been set.
func (e *rtoEstimator) current() time.Duration {
	if !e.rtoSet {
		return InitRTO
	}
	return e.rto
}

// sample folds one RTT measurement R into the estimator.
func (e *rtoEstimator) sample(r time.Duration) {
	if r < 0 {
		r = 0
	}
	if !e.sampled {
		e.srtt = r
		e.rttvar = r / 2
		e.sampled = true
	} else {
		delta := e.srtt - r
		if delta < 0 {
			delta = -delta
		}
		e.rttvar = e.rttvar*3/4 + delta/4
		e.srtt = e.srtt*7/8 + r/8
	}
	e.rto = e.srtt + max4(e.rttvar)
	e.rtoSet = true
	e.clamp()
}

// max4 implements max(1, 4*rttvar) in duration terms: a floor of one
// nanosecond keeps the RTO from collapsing to exactly SRTT when variance is
// zero, matching the C original's MAX(1, 4*rttvar).
func max4(rttvar time.Duration) time.Duration {
	v := 4 * rttvar
	if v < time.Nanosecond {
		return time.Nanosecond
	}
	return v
}

func (e *rtoEstimator) clamp() {
	if e.rto < MinRTO {
		e.rto = MinRTO
	} else if e.rto > MaxRTO {
		e.rto = MaxRTO
	}
}

// backoff doubles the current RTO after a retransmission timeout, per spec
// section 4.3's exponential backoff rule. It must be called even before the
// first sample, operating on InitRTO in that case.
func (e *rtoEstimator) backoff() {
	cur := e.current()
	next := cur * 2
	if next > MaxRTO {
		next = MaxRTO
	}
	e.rto = next
	e.rtoSet = true
}
