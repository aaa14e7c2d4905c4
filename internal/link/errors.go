package link

import (
	"errors"
	"fmt"

	"github.com/danmuck/spilink/internal/protocol/messaging"
)

var (
	ErrTransport = errors.New("link: transport failure")
	ErrNoData    = errors.New("link: no data available")
	ErrFraming   = errors.New("link: malformed packet")
	// ErrSizeMismatch means a metadata body did not unwrap to its footer.
	ErrSizeMismatch = errors.New("link: size mismatch")
	ErrUsage        = errors.New("link: usage error")
	ErrIdleLimit    = errors.New("link: idle poll limit reached")
	ErrAllocation   = errors.New("link: declared size exceeds allocation limit")
	ErrRejected     = errors.New("link: request rejected by peer")
)

// RequestError records which exchange failed. Err wraps one of the package
// sentinels.
type RequestError struct {
	Op     string
	Cmd    messaging.Command
	Stream string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Stream == "" {
		return fmt.Sprintf("link: %s %s: %v", e.Op, e.Cmd, e.Err)
	}
	return fmt.Sprintf("link: %s %s stream=%q: %v", e.Op, e.Cmd, e.Stream, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Outcome maps an operation result onto a short label for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUsage):
		return "usage"
	case errors.Is(err, ErrFraming):
		return "framing"
	case errors.Is(err, ErrIdleLimit):
		return "idle_limit"
	case errors.Is(err, ErrSizeMismatch):
		return "size_mismatch"
	case errors.Is(err, ErrAllocation):
		return "allocation"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "error"
	}
}
