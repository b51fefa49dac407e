package traffic

// Direction identifies one of the four approaches of an intersection.
// The ordinal is used as the index into every per-approach container.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// NumDirections is the number of approaches per intersection.
const NumDirections = 4

// Directions lists all approaches in ordinal order.
var Directions = [NumDirections]Direction{North, East, South, West}

var directionNames = [NumDirections]string{"north", "east", "south", "west"}

func (d Direction) String() string {
	if d < 0 || int(d) >= NumDirections {
		return "unknown"
	}
	return directionNames[d]
}

// Valid returns true if d is one of the four approaches.
func (d Direction) Valid() bool {
	return d >= North && d <= West
}

// Opposite returns the approach facing d across the intersection.
func (d Direction) Opposite() Direction {
	return (d + 2) % NumDirections
}

// ExitLeg returns the leg a right-turning vehicle from d leaves through.
func (d Direction) ExitLeg() Direction {
	return (d + 3) % NumDirections
}

// ParseDirection maps a lowercase direction name to its Direction.
func ParseDirection(s string) (Direction, bool) {
	for i, name := range directionNames {
		if name == s {
			return Direction(i), true
		}
	}
	return 0, false
}

// SignalPhase is the right-of-way group currently served.
type SignalPhase int

const (
	NSGreen SignalPhase = iota
	EWGreen
)

// NumPhases is the number of phases in the two-phase model.
const NumPhases = 2

func (p SignalPhase) String() string {
	switch p {
	case NSGreen:
		return "NS_GREEN"
	case EWGreen:
		return "EW_GREEN"
	default:
		return "UNKNOWN"
	}
}

// Grants returns true if the phase gives right-of-way to approach d.
func (p SignalPhase) Grants(d Direction) bool {
	switch p {
	case NSGreen:
		return d == North || d == South
	case EWGreen:
		return d == East || d == West
	}
	return false
}

// Next returns the phase that follows p.
func (p SignalPhase) Next() SignalPhase {
	if p == NSGreen {
		return EWGreen
	}
	return NSGreen
}
