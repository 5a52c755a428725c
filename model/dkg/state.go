package dkg

import "time"

// ContractState holds the deployment parameters of the coordinator contract.
// They are fixed at instantiation and visible to every participant.
type ContractState struct {
	// DealingsPerDealer is D, the number of dealing indices each dealer must
	// fill per epoch. Valid dealing indices are [0, D).
	DealingsPerDealer uint64

	// PhaseDurations maps each lifecycle phase to its deadline duration.
	PhaseDurations map[EpochState]time.Duration
}
