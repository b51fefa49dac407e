package traffic

import (
	"fmt"
	"math/rand/v2"
)

// IntersectionMetrics accumulates per-episode totals for one intersection.
type IntersectionMetrics struct {
	VehiclesCrossed    int     `json:"vehicles_crossed_total"`
	PedestriansServed  int     `json:"pedestrians_served_total"`
	WaitTime           int     `json:"wait_time_total"`
	VehiclesBlocked    int     `json:"vehicles_blocked_total"`
	PedestriansBlocked int     `json:"pedestrians_blocked_total"`
	RightTurns         int     `json:"right_turns_total"`
	RightTurnConflicts int     `json:"right_turn_conflicts_total"`
	Switches           int     `json:"switches_total"`
	Reward             float64 `json:"reward_total"`
}

// StepReport is the per-intersection breakdown of one step.
type StepReport struct {
	Intersection string      `json:"intersection"`
	Action       Action      `json:"action"`
	Phase        SignalPhase `json:"phase"`
	PhaseTimer   int         `json:"phase_timer"`

	Switched       bool `json:"switched"`
	SwitchDeferred bool `json:"switch_deferred"`

	VehicleArrivals    int `json:"vehicle_arrivals"`
	PedestrianRequests int `json:"pedestrian_requests"`

	VehiclesAdmitted    int `json:"vehicles_admitted"`
	RightTurns          int `json:"right_turns"`
	PedestriansAdmitted int `json:"pedestrians_admitted"`

	VehiclesCrossed    int `json:"vehicles_crossed"`
	PedestriansServed  int `json:"pedestrians_served"`
	VehiclesBlocked    int `json:"vehicles_blocked"`
	PedestriansBlocked int `json:"pedestrians_blocked"`
	RightTurnConflicts int `json:"right_turn_conflicts"`

	Reward float64 `json:"reward"`
}

// stepParams carries the environment-wide settings an intersection needs.
type stepParams struct {
	vehicleTime    int
	pedestrianTime int
	rewards        RewardCalculator
	schedule       ArrivalSchedule
}

// Intersection composes a signal controller with four approaches and four
// crosswalks. All of its state is private to it.
type Intersection struct {
	id         string
	index      int
	signal     SignalController
	approaches [NumDirections]ApproachQueue
	crossings  [NumDirections]PedestrianCrossing
	metrics    IntersectionMetrics

	// set when a switch fired while a crossing was in progress
	unsafeSwitch bool

	src *rand.PCG
	rng *rand.Rand
}

func newIntersection(id string, index int, seed uint64) *Intersection {
	x := &Intersection{id: id, index: index}
	x.reset()
	x.reseed(seed)
	return x
}

func (x *Intersection) reseed(seed uint64) {
	x.src = rand.NewPCG(seed, 0x9e3779b97f4a7c15^uint64(x.index+1))
	x.rng = rand.New(x.src)
}

// reset restores the initial state. The random stream is not touched.
func (x *Intersection) reset() {
	x.signal.reset()
	x.approaches = [NumDirections]ApproachQueue{}
	x.crossings = [NumDirections]PedestrianCrossing{}
	x.metrics = IntersectionMetrics{}
	x.unsafeSwitch = false
}

func (x *Intersection) clone() *Intersection {
	c := *x
	src := *x.src
	c.src = &src
	c.rng = rand.New(c.src)
	return &c
}

// ID returns the intersection label.
func (x *Intersection) ID() string {
	return x.id
}

// busy returns true while any vehicle or pedestrian is mid-crossing.
func (x *Intersection) busy() bool {
	for _, d := range Directions {
		if x.approaches[d].Busy() || x.crossings[d].Busy() {
			return true
		}
	}
	return false
}

// pedestrianConflict returns true if a pedestrian blocks a vehicle from d.
func (x *Intersection) pedestrianConflict(d Direction) bool {
	return x.crossings[d].Busy() || x.crossings[d.Opposite()].Busy()
}

// vehicleConflict returns true if a vehicle blocks the crosswalk at p.
func (x *Intersection) vehicleConflict(p Direction) bool {
	if x.approaches[p].Busy() || x.approaches[p.Opposite()].Busy() {
		return true
	}
	turner := &x.approaches[(p+1)%NumDirections]
	return turner.Busy() && turner.Turning
}

func (x *Intersection) step(t int, a Action, p *stepParams) StepReport {
	rep := StepReport{Intersection: x.id, Action: a}

	busy := x.busy()
	rep.Switched, rep.SwitchDeferred = x.signal.Advance(a == ActionSwitch, busy)
	x.unsafeSwitch = rep.Switched && busy
	rep.Phase = x.signal.Phase()
	rep.PhaseTimer = x.signal.Timer()

	x.arrive(t, p.schedule, &rep)
	x.complete(&rep)

	if a == ActionPedestrianPriority {
		x.admitPedestrians(p.pedestrianTime, &rep)
		x.admitVehicles(a, p.vehicleTime, &rep)
	} else {
		x.admitVehicles(a, p.vehicleTime, &rep)
		x.admitPedestrians(p.pedestrianTime, &rep)
	}

	for _, d := range Directions {
		c := &x.crossings[d]
		c.accrue()
		if c.RequestPending && !x.signal.Grants(d) {
			rep.PedestriansBlocked++
		}
	}

	rep.Reward = p.rewards.Score(&rep)
	x.record(&rep)
	return rep
}

// arrive draws one vehicle and one pedestrian Bernoulli trial per approach.
// Both draws are always taken so the random stream does not depend on state.
func (x *Intersection) arrive(t int, s ArrivalSchedule, rep *StepReport) {
	for _, d := range Directions {
		if x.rng.Float64() < s.VehicleProbability(t, x.index, d) {
			x.approaches[d].Arrive()
			rep.VehicleArrivals++
		}
		if x.rng.Float64() < s.PedestrianProbability(t, x.index, d) {
			if x.crossings[d].Request() {
				rep.PedestrianRequests++
			}
		}
	}
}

func (x *Intersection) complete(rep *StepReport) {
	for _, d := range Directions {
		if x.approaches[d].tick() {
			rep.VehiclesCrossed++
		}
	}
	for _, d := range Directions {
		c := &x.crossings[d]
		wait := c.Wait()
		if c.tick() {
			rep.PedestriansServed++
			x.metrics.WaitTime += wait
		}
	}
}

func (x *Intersection) admitVehicles(a Action, duration int, rep *StepReport) {
	for _, d := range Directions {
		q := &x.approaches[d]
		if !x.signal.Grants(d) || !q.ready() {
			continue
		}
		if x.pedestrianConflict(d) {
			rep.VehiclesBlocked++
			continue
		}
		q.admit(duration, false)
		rep.VehiclesAdmitted++
	}

	if a != ActionRightTurn {
		return
	}
	for _, d := range Directions {
		q := &x.approaches[d]
		if x.signal.Grants(d) || !q.ready() {
			continue
		}
		if x.crossings[d.ExitLeg()].Busy() {
			rep.RightTurnConflicts++
			continue
		}
		q.admit(duration, true)
		rep.RightTurns++
	}
}

func (x *Intersection) admitPedestrians(duration int, rep *StepReport) {
	for _, d := range Directions {
		c := &x.crossings[d]
		if !c.RequestPending || c.Busy() || !x.signal.Grants(d) {
			continue
		}
		if x.vehicleConflict(d) {
			continue
		}
		c.admit(duration)
		rep.PedestriansAdmitted++
	}
}

func (x *Intersection) record(rep *StepReport) {
	m := &x.metrics
	m.VehiclesCrossed += rep.VehiclesCrossed
	m.PedestriansServed += rep.PedestriansServed
	m.VehiclesBlocked += rep.VehiclesBlocked
	m.PedestriansBlocked += rep.PedestriansBlocked
	m.RightTurns += rep.RightTurns
	m.RightTurnConflicts += rep.RightTurnConflicts
	m.Reward += rep.Reward
	if rep.Switched {
		m.Switches++
	}
}

// verify checks the safety and bookkeeping invariants after a step.
func (x *Intersection) verify(p *stepParams) error {
	fail := func(d Direction, format string, args ...interface{}) error {
		return &InvariantError{Intersection: x.id, Direction: d, Detail: fmt.Sprintf(format, args...)}
	}
	if x.unsafeSwitch {
		return fail(North, "phase switched to %s while a crossing was in progress", x.signal.Phase())
	}
	for _, d := range Directions {
		q := &x.approaches[d]
		c := &x.crossings[d]
		if q.QueueLength < 0 {
			return fail(d, "queue_length %d < 0", q.QueueLength)
		}
		if q.CrossingTimer < 0 || q.CrossingTimer > p.vehicleTime {
			return fail(d, "vehicle crossing_timer %d outside [0,%d]", q.CrossingTimer, p.vehicleTime)
		}
		if c.CrossingTimer < 0 || c.CrossingTimer > p.pedestrianTime {
			return fail(d, "pedestrian crossing_timer %d outside [0,%d]", c.CrossingTimer, p.pedestrianTime)
		}
		if q.Busy() && !q.Turning && !x.signal.Grants(d) {
			return fail(d, "vehicle crossing under %s", x.signal.Phase())
		}
		if c.Busy() && !x.signal.Grants(d) {
			return fail(d, "pedestrian crossing under %s", x.signal.Phase())
		}
		if c.Busy() && c.RequestPending {
			return fail(d, "pedestrian pending while crossing")
		}
		if c.Busy() && x.vehicleConflict(d) {
			return fail(d, "pedestrian and conflicting vehicle crossing together")
		}
	}
	return nil
}

func (x *Intersection) observe(dst []float64) {
	for _, d := range Directions {
		dst[obsQueue+int(d)] = float64(x.approaches[d].QueueLength)
		dst[obsPedPending+int(d)] = boolFloat(x.crossings[d].RequestPending)
		dst[obsPedTimer+int(d)] = float64(x.crossings[d].CrossingTimer)
		dst[obsVehicleTimer+int(d)] = float64(x.approaches[d].CrossingTimer)
	}
	dst[obsPhase+int(NSGreen)] = 0
	dst[obsPhase+int(EWGreen)] = 0
	dst[obsPhase+int(x.signal.Phase())] = 1
	dst[obsPhaseTimer] = float64(x.signal.Timer())
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
