package traffic

import "fmt"

// Observation is the flattened state vector handed to agents. Intersections
// are laid out one after another in configuration order, each occupying
// ObservationSize entries:
//
//	[0:4]   queue_length          N, E, S, W
//	[4:6]   phase one-hot         NS_GREEN, EW_GREEN
//	[6]     phase_timer
//	[7:11]  pedestrian pending    N, E, S, W (0 or 1)
//	[11:15] pedestrian timer      N, E, S, W
//	[15:19] vehicle timer         N, E, S, W
//
// The layout must stay stable for the life of a trained model.
type Observation []float64

const (
	obsQueue        = 0
	obsPhase        = obsQueue + NumDirections
	obsPhaseTimer   = obsPhase + NumPhases
	obsPedPending   = obsPhaseTimer + 1
	obsPedTimer     = obsPedPending + NumDirections
	obsVehicleTimer = obsPedTimer + NumDirections

	// ObservationSize is the number of entries per intersection.
	ObservationSize = obsVehicleTimer + NumDirections
)

// SplitObservation returns the i-th of n equal partitions of obs.
// The result shares storage with obs.
func SplitObservation(obs Observation, i, n int) (Observation, error) {
	if n <= 0 || i < 0 || i >= n {
		return nil, fmt.Errorf("split index %d of %d out of range", i, n)
	}
	if len(obs)%n != 0 {
		return nil, fmt.Errorf("observation length %d not divisible by %d", len(obs), n)
	}
	size := len(obs) / n
	return obs[i*size : (i+1)*size], nil
}

// Queue returns the queue length of approach d in a per-intersection observation.
func (o Observation) Queue(d Direction) int {
	return int(o[obsQueue+int(d)])
}

// Phase returns the phase encoded in a per-intersection observation.
func (o Observation) Phase() SignalPhase {
	if o[obsPhase+int(EWGreen)] > o[obsPhase+int(NSGreen)] {
		return EWGreen
	}
	return NSGreen
}

// PhaseTimer returns the phase timer in a per-intersection observation.
func (o Observation) PhaseTimer() int {
	return int(o[obsPhaseTimer])
}

// PedestrianPending returns whether approach d has a waiting pedestrian.
func (o Observation) PedestrianPending(d Direction) bool {
	return o[obsPedPending+int(d)] > 0
}

// PedestrianTimer returns the pedestrian crossing timer of approach d.
func (o Observation) PedestrianTimer(d Direction) int {
	return int(o[obsPedTimer+int(d)])
}

// VehicleTimer returns the vehicle crossing timer of approach d.
func (o Observation) VehicleTimer(d Direction) int {
	return int(o[obsVehicleTimer+int(d)])
}
