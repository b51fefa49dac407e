package traffic

// ApproachQueue tracks vehicles waiting on one approach and the single
// vehicle, if any, currently transiting the intersection from it.
type ApproachQueue struct {
	QueueLength   int  `json:"queue_length"`
	CrossingTimer int  `json:"crossing_timer"`
	CrossedCount  int  `json:"crossed_count"`
	Turning       bool `json:"turning"`
}

// Busy returns true while a vehicle from this approach is mid-crossing.
func (q *ApproachQueue) Busy() bool {
	return q.CrossingTimer > 0
}

// Arrive adds one vehicle to the back of the queue.
func (q *ApproachQueue) Arrive() {
	q.QueueLength++
}

// tick advances the crossing in progress and reports whether it completed.
func (q *ApproachQueue) tick() bool {
	if q.CrossingTimer == 0 {
		return false
	}
	q.CrossingTimer--
	if q.CrossingTimer > 0 {
		return false
	}
	q.CrossedCount++
	q.Turning = false
	return true
}

// ready returns true if a queued vehicle could start crossing now.
func (q *ApproachQueue) ready() bool {
	return q.CrossingTimer == 0 && q.QueueLength > 0
}

// admit moves the head vehicle from the queue into the intersection.
func (q *ApproachQueue) admit(duration int, turning bool) {
	q.QueueLength--
	q.CrossingTimer = duration
	q.Turning = turning
}
