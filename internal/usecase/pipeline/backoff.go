package pipeline

import (
	"math/rand/v2"
	"time"
)

// maxBackoff caps the exponential growth so late attempts stay schedulable.
const maxBackoff = time.Hour

// backoffDelay returns the delay before the given attempt (1-based):
// base doubled per prior attempt, with half-interval jitter so retries
// from one burst do not land on the provider simultaneously.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			d = maxBackoff
			break
		}
	}

	half := d / 2
	return half + rand.N(half+1)
}
