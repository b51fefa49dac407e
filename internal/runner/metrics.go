package runner

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/storage/postgres"
	"github.com/samber/lo"
)

var csvHeader = []string{"Episode", "Reward", "VehiclesCrossed", "PedestriansServed", "AvgPedWait"}

// WriteMetricsCSV writes one row per episode. VehiclesCrossed is the total
// over all intersections.
func WriteMetricsCSV(w io.Writer, results []EpisodeResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			strconv.Itoa(r.Episode),
			strconv.FormatFloat(r.Reward, 'f', 2, 64),
			strconv.Itoa(r.TotalVehicles()),
			strconv.Itoa(r.PedestriansServed),
			strconv.FormatFloat(r.AvgPedWait, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summary aggregates stored episodes.
type Summary struct {
	Episodes           int     `json:"episodes"`
	MeanReward         float64 `json:"mean_reward"`
	BestReward         float64 `json:"best_reward"`
	MeanVehicles       float64 `json:"mean_vehicles_crossed"`
	MeanPedestrians    float64 `json:"mean_pedestrians_served"`
	MeanPedestrianWait float64 `json:"mean_ped_wait"`
}

// Summarize computes history statistics. The pedestrian wait is weighted by
// pedestrians served.
func Summarize(rows []postgres.EpisodeRow) Summary {
	if len(rows) == 0 {
		return Summary{}
	}
	n := float64(len(rows))
	served := lo.SumBy(rows, func(r postgres.EpisodeRow) int { return r.PedestriansServed })
	waited := lo.SumBy(rows, func(r postgres.EpisodeRow) float64 {
		return r.AvgPedWait * float64(r.PedestriansServed)
	})
	best := lo.MaxBy(rows, func(a, b postgres.EpisodeRow) bool { return a.Reward > b.Reward })

	s := Summary{
		Episodes:        len(rows),
		MeanReward:      lo.SumBy(rows, func(r postgres.EpisodeRow) float64 { return r.Reward }) / n,
		BestReward:      best.Reward,
		MeanVehicles:    float64(lo.SumBy(rows, func(r postgres.EpisodeRow) int { return lo.Sum(r.VehiclesCrossed) })) / n,
		MeanPedestrians: float64(served) / n,
	}
	if served > 0 {
		s.MeanPedestrianWait = waited / float64(served)
	}
	return s
}
