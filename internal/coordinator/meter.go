package coordinator

import "time"

// GasMeter measures the resources a fulfillment callback consumes, in gas
// units. Start is called right before the callback and the returned stop
// function right after it.
type GasMeter interface {
	Start() (stop func() uint64)
}

// WallClockMeter proxies consumption by elapsed wall-clock time, one gas
// unit per microsecond. It never reports zero so every fulfillment pays at
// least one unit on top of the base fee.
type WallClockMeter struct{}

func (WallClockMeter) Start() func() uint64 {
	begin := time.Now()
	return func() uint64 {
		us := time.Since(begin).Microseconds()
		if us < 1 {
			us = 1
		}
		return uint64(us)
	}
}

// FixedMeter reports a constant consumption, which makes billed amounts
// deterministic. Used by tests.
type FixedMeter struct {
	Units uint64
}

func (m FixedMeter) Start() func() uint64 {
	return func() uint64 { return m.Units }
}
