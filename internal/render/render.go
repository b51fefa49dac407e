package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/traffic"
)

// maxBar caps queue bars so long queues keep the layout readable.
const maxBar = 20

// Render writes a text picture of v: one block per intersection followed by
// the episode metrics.
func Render(w io.Writer, v traffic.EnvironmentView) error {
	var b strings.Builder

	status := "running"
	if v.Done {
		status = "done"
	}
	fmt.Fprintf(&b, "Episode %d  step %d/%d  [%s]\n", v.Episode, v.Step, v.MaxSteps, status)

	for _, x := range v.Intersections {
		b.WriteString("\n")
		writeIntersection(&b, x)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Pedestrians served: %d | Avg wait: %.2f\n", v.PedestriansServed, v.MeanPedestrianWait)
	total := 0
	for _, n := range v.VehiclesCrossed {
		total += n
	}
	fmt.Fprintf(&b, "Vehicles crossed: %d\n", total)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeIntersection(b *strings.Builder, x traffic.IntersectionView) {
	fmt.Fprintf(b, "Intersection %s  %s  t=%d  reward=%.1f\n", x.ID, x.PhaseName, x.PhaseTimer, x.Metrics.Reward)
	for _, d := range traffic.Directions {
		light := "R"
		if x.Phase.Grants(d) {
			light = "G"
		}
		fmt.Fprintf(b, "  %-5s [%s] %-*s %3d", strings.ToUpper(d.String()), light, maxBar, bar(x.Queues[d]), x.Queues[d])

		switch {
		case x.VehicleTimers[d] > 0 && x.Turning[d]:
			fmt.Fprintf(b, "  car turning (%d)", x.VehicleTimers[d])
		case x.VehicleTimers[d] > 0:
			fmt.Fprintf(b, "  car crossing (%d)", x.VehicleTimers[d])
		}
		switch {
		case x.PedestrianTimers[d] > 0:
			fmt.Fprintf(b, "  ped crossing (%d)", x.PedestrianTimers[d])
		case x.PedestrianPending[d]:
			b.WriteString("  ped waiting")
		}
		b.WriteString("\n")
	}
}

func bar(n int) string {
	if n > maxBar {
		return strings.Repeat("#", maxBar-1) + "+"
	}
	return strings.Repeat("#", n)
}
