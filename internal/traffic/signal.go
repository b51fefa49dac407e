package traffic

// SignalController is the two-phase state machine of one intersection.
type SignalController struct {
	phase SignalPhase
	timer int
}

// NewSignalController returns a controller in NS_GREEN with a zero timer.
func NewSignalController() SignalController {
	return SignalController{phase: NSGreen}
}

// Phase returns the current phase.
func (s *SignalController) Phase() SignalPhase {
	return s.phase
}

// Timer returns the number of steps spent in the current phase.
func (s *SignalController) Timer() int {
	return s.timer
}

// Grants returns true if approach d currently has right-of-way.
func (s *SignalController) Grants(d Direction) bool {
	return s.phase.Grants(d)
}

// Advance applies one step of the state machine. A switch request flips the
// phase and zeroes the timer only when busy is false; otherwise the request
// is deferred and the timer keeps counting.
// It reports whether the phase changed and whether a request was deferred.
func (s *SignalController) Advance(requestSwitch, busy bool) (switched, deferred bool) {
	if requestSwitch && !busy {
		s.phase = s.phase.Next()
		s.timer = 0
		return true, false
	}
	s.timer++
	return false, requestSwitch
}

func (s *SignalController) reset() {
	s.phase = NSGreen
	s.timer = 0
}
