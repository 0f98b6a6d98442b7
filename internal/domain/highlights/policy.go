package highlights

import (
	"fmt"
	"strings"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/types"
)

// Policy decides what happens when the selected end lies past the end of
// the transcript.
type Policy int

const (
	// PolicyClamp trims the end to the last segment end. A start at or past
	// that point is still rejected.
	PolicyClamp Policy = iota
	// PolicyReject fails the selection.
	PolicyReject
	// PolicyTrust passes the range through unchanged.
	PolicyTrust
)

func (p Policy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyTrust:
		return "trust"
	default:
		return "clamp"
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return PolicyClamp, nil
	case "reject":
		return PolicyReject, nil
	case "trust":
		return PolicyTrust, nil
	default:
		return PolicyClamp, fmt.Errorf("unknown selection policy %q (want clamp, reject or trust)", s)
	}
}

// Apply bounds r against tr according to p.
func (p Policy) Apply(r types.TimeRange, tr types.Transcript) (types.TimeRange, error) {
	limit := tr.End()
	if limit <= 0 || r.End <= limit || p == PolicyTrust {
		return r, nil
	}
	if p == PolicyReject {
		return types.TimeRange{}, apperr.New(apperr.KindInvalidSelection, "bound selection",
			fmt.Sprintf("end %.3f is past transcript end %.3f", r.End, limit))
	}
	if r.Start >= limit {
		return types.TimeRange{}, apperr.New(apperr.KindInvalidSelection, "bound selection",
			fmt.Sprintf("start %.3f is at or past transcript end %.3f", r.Start, limit))
	}
	r.End = limit
	return r, nil
}
