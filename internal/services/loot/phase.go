package loot

import "fmt"

// Phase is the stage of a loot round. Phases only move forward.
type Phase int

const (
	PhasePrep Phase = iota
	PhaseClaim
	PhaseVote
	PhaseConcluded
)

var phaseNames = [...]string{"PREP", "CLAIM", "VOTE", "CONCLUDED"}

func (p Phase) String() string {
	if p < PhasePrep || p > PhaseConcluded {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown loot phase %q", text)
}

// CompletionPolicy decides who must finish before VOTE completes. CLAIM
// always waits for every eligible player.
type CompletionPolicy int

const (
	// AllEligible waits for every eligible player, claimant or not
	AllEligible CompletionPolicy = iota
	// ContestedClaimants waits only for the claimants of contested entries
	ContestedClaimants
)

// ParseCompletionPolicy accepts "all-eligible" and "contested-claimants".
// The empty string selects AllEligible.
func ParseCompletionPolicy(s string) (CompletionPolicy, error) {
	switch s {
	case "", "all-eligible":
		return AllEligible, nil
	case "contested-claimants":
		return ContestedClaimants, nil
	}
	return AllEligible, fmt.Errorf("unknown loot completion policy %q", s)
}
