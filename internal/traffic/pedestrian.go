package traffic

// PedestrianCrossing tracks the crosswalk on one approach. Waiting pedestrians
// are represented by a single pending flag, not a count.
type PedestrianCrossing struct {
	RequestPending bool `json:"request_pending"`
	CrossingTimer  int  `json:"crossing_timer"`
	ServedCount    int  `json:"served_count"`
	TotalWait      int  `json:"total_wait_accumulated"`

	// steps the current request has waited, carried into the crossing
	wait int
}

// Busy returns true while a pedestrian is mid-crossing.
func (p *PedestrianCrossing) Busy() bool {
	return p.CrossingTimer > 0
}

// Request raises a crossing request unless one is pending or a crossing is
// already in progress. It reports whether a new request was raised.
func (p *PedestrianCrossing) Request() bool {
	if p.RequestPending || p.CrossingTimer > 0 {
		return false
	}
	p.RequestPending = true
	p.wait = 0
	return true
}

// Wait returns how many steps the pending or crossing pedestrian waited.
func (p *PedestrianCrossing) Wait() int {
	return p.wait
}

// MeanWait returns TotalWait / ServedCount, or 0 if nobody was served.
func (p *PedestrianCrossing) MeanWait() float64 {
	if p.ServedCount == 0 {
		return 0
	}
	return float64(p.TotalWait) / float64(p.ServedCount)
}

// tick advances the crossing in progress and reports whether it completed.
func (p *PedestrianCrossing) tick() bool {
	if p.CrossingTimer == 0 {
		return false
	}
	p.CrossingTimer--
	if p.CrossingTimer > 0 {
		return false
	}
	p.ServedCount++
	p.TotalWait += p.wait
	p.wait = 0
	return true
}

// admit starts the pending pedestrian's crossing.
func (p *PedestrianCrossing) admit(duration int) {
	p.RequestPending = false
	p.CrossingTimer = duration
}

// accrue charges one step of wait to a pending request.
func (p *PedestrianCrossing) accrue() {
	if p.RequestPending {
		p.wait++
	}
}
