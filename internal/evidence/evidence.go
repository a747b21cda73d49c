// Package evidence implements the three evidence source clients. Each
// exposes a Fetch that never returns a Go error: every failure mode is
// captured as a Failure result so the orchestration loop can absorb it.
package evidence

import (
	"context"
	"errors"
)

func timedOut(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
