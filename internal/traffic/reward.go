package traffic

// RewardCalculator converts step events into scalar reward contributions.
// It holds no state beyond its coefficients.
type RewardCalculator struct {
	VehicleReward   float64 `json:"vehicle_reward"`
	PedReward       float64 `json:"ped_reward"`
	BlockedPenalty  float64 `json:"blocked_penalty"`
	CrossingPenalty float64 `json:"crossing_penalty"`
	TurnOverPenalty float64 `json:"turn_over_penalty"`
}

// DefaultRewards returns the standard coefficients.
func DefaultRewards() RewardCalculator {
	return RewardCalculator{
		VehicleReward:   2.0,
		PedReward:       3.0,
		BlockedPenalty:  -1.0,
		CrossingPenalty: -2.0,
		TurnOverPenalty: -2.0,
	}
}

// VehicleCrossed rewards count vehicles completing a crossing.
func (r RewardCalculator) VehicleCrossed(count int) float64 {
	return float64(count) * r.VehicleReward
}

// PedestrianServed rewards one pedestrian completing a crossing.
func (r RewardCalculator) PedestrianServed() float64 {
	return r.PedReward
}

// VehicleBlockedByPedestrian penalises one vehicle held by a conflicting pedestrian.
func (r RewardCalculator) VehicleBlockedByPedestrian() float64 {
	return r.BlockedPenalty
}

// OtherPedestriansBlocked penalises count pedestrians denied by the phase.
func (r RewardCalculator) OtherPedestriansBlocked(count int) float64 {
	return float64(count) * r.CrossingPenalty
}

// RightTurnPenalty penalises a right turn attempted into an active crosswalk.
func (r RewardCalculator) RightTurnPenalty() float64 {
	return r.TurnOverPenalty
}

// Score sums the reward terms for one intersection step report.
func (r RewardCalculator) Score(rep *StepReport) float64 {
	total := r.VehicleCrossed(rep.VehiclesCrossed)
	total += float64(rep.PedestriansServed) * r.PedestrianServed()
	total += float64(rep.VehiclesBlocked) * r.VehicleBlockedByPedestrian()
	total += r.OtherPedestriansBlocked(rep.PedestriansBlocked)
	total += float64(rep.RightTurnConflicts) * r.RightTurnPenalty()
	return total
}
