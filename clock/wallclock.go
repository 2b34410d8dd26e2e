package clock

import "time"

// processStart anchors the monotonic wall clock so wallClockMicros
// never returns a value dependent on the host's epoch, only on
// elapsed process time.
var processStart = time.Now()

func wallClockMicros() SyncTime {
	return SyncTime(time.Since(processStart).Microseconds())
}
