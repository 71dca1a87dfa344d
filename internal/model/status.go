package model

import "fmt"

const (
	StatePending        = "pending"
	StateDetailFetched  = "detail_fetched"
	StateFilteredOut    = "filtered_out"
	StateQualifying     = "qualifying"
	StateCollected      = "collected"
	StateDropped        = "dropped"
	StateScanTerminated = "scan_terminated"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatePending: true,
	},
	StatePending: {
		StateDetailFetched:  true,
		StateFilteredOut:    true, // content type known before detail fetch
		StateDropped:        true, // detail fetch failed
		StateScanTerminated: true,
	},
	StateDetailFetched: {
		StateFilteredOut: true,
		StateQualifying:  true,
		StateDropped:     true,
	},
	StateQualifying: {
		StateCollected: true,
		StateDropped:   true,
	},
	StateFilteredOut:    {},
	StateCollected:      {},
	StateDropped:        {},
	StateScanTerminated: {},
}

func IsKnownState(state string) bool {
	_, ok := allowedTransitions[state]
	return ok
}

func IsTerminalState(state string) bool {
	next, ok := allowedTransitions[state]
	return ok && state != "" && len(next) == 0
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionCandidate(c *VideoCandidate, toState string, reason string) error {
	from := c.State
	if !IsKnownState(toState) {
		return fmt.Errorf("unknown candidate state %q (video_id=%s)", toState, c.ID)
	}
	if !CanTransition(from, toState) {
		return fmt.Errorf("invalid candidate state transition: %q -> %q (video_id=%s)", from, toState, c.ID)
	}
	c.State = toState
	c.Reason = reason
	return nil
}
