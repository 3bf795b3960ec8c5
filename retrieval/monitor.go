package retrieval

import "time"

// Monitor provides hooks to observe question answering.
type Monitor interface {
	// Retrieved is called once the index query finished or the turn aborted before it.
	Retrieved(hits int, elapsed time.Duration, err error)

	// Generated is called once the reply stream has ended.
	Generated(elapsed time.Duration, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Retrieved(_ int, _ time.Duration, _ error) {}
func (n *noopMonitor) Generated(_ time.Duration, _ error)        {}
