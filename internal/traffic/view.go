package traffic

// IntersectionView is a read-only copy of one intersection's state for
// renderers and inspection endpoints.
type IntersectionView struct {
	ID                string              `json:"id"`
	Phase             SignalPhase         `json:"phase"`
	PhaseName         string              `json:"phase_name"`
	PhaseTimer        int                 `json:"phase_timer"`
	Queues            [NumDirections]int  `json:"queues"`
	VehicleTimers     [NumDirections]int  `json:"vehicle_timers"`
	Turning           [NumDirections]bool `json:"turning"`
	Crossed           [NumDirections]int  `json:"crossed"`
	PedestrianPending [NumDirections]bool `json:"pedestrian_pending"`
	PedestrianTimers  [NumDirections]int  `json:"pedestrian_timers"`
	Served            [NumDirections]int  `json:"served"`
	Metrics           IntersectionMetrics `json:"metrics"`
}

// EnvironmentView is a read-only copy of the whole environment.
type EnvironmentView struct {
	Episode             int                `json:"episode"`
	Step                int                `json:"step"`
	MaxSteps            int                `json:"max_steps"`
	Done                bool               `json:"done"`
	VehicleCrossingTime int                `json:"vehicle_crossing_time"`
	Intersections       []IntersectionView `json:"intersections"`
	VehiclesCrossed     []int              `json:"vehicles_crossed"`
	PedestriansServed   int                `json:"pedestrians_served"`
	MeanPedestrianWait  float64            `json:"mean_pedestrian_wait"`
}

func (x *Intersection) view() IntersectionView {
	v := IntersectionView{
		ID:         x.id,
		Phase:      x.signal.Phase(),
		PhaseName:  x.signal.Phase().String(),
		PhaseTimer: x.signal.Timer(),
		Metrics:    x.metrics,
	}
	for _, d := range Directions {
		q := x.approaches[d]
		c := x.crossings[d]
		v.Queues[d] = q.QueueLength
		v.VehicleTimers[d] = q.CrossingTimer
		v.Turning[d] = q.Turning
		v.Crossed[d] = q.CrossedCount
		v.PedestrianPending[d] = c.RequestPending
		v.PedestrianTimers[d] = c.CrossingTimer
		v.Served[d] = c.ServedCount
	}
	return v
}
