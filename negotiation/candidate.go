package negotiation

import (
	"fmt"
	"strings"

	"github.com/pion/ice/v2"
)

func parseCandidate(c Candidate) (ice.Candidate, error) {
	if c.Candidate == "" {
		return nil, fmt.Errorf("%w: empty candidate line", ErrMalformedCandidate)
	}
	if c.SDPMid == nil && c.SDPMLineIndex == nil {
		return nil, fmt.Errorf("%w: no sdpMid or sdpMLineIndex", ErrMalformedCandidate)
	}
	cand, err := ice.UnmarshalCandidate(strings.TrimPrefix(c.Candidate, "candidate:"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCandidate, err)
	}
	return cand, nil
}

// IsRelay reports whether c is a well formed relay candidate.
func IsRelay(c Candidate) bool {
	cand, err := parseCandidate(c)
	return err == nil && cand.Type() == ice.CandidateTypeRelay
}

func ValidateCandidate(c Candidate) error {
	_, err := parseCandidate(c)
	return err
}
