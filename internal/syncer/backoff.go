package syncer

import "time"

const (
	backoffBase = 2 * time.Second
	backoffCap  = 32 * time.Second
)

// NextBackoff returns the delay before the attempt following retryCount
// failures: 2s, 4s, 8s, 16s, then capped at 32s.
func NextBackoff(retryCount int) time.Duration {
	if retryCount < 1 {
		return backoffBase
	}
	delay := backoffBase
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= backoffCap {
			return backoffCap
		}
	}
	return delay
}
