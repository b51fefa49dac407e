package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/config"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/runner"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/storage/postgres"
)

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Summarize episodes stored in Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			password, err := config.ResolveSecret(config.EnvPostgresPassword)
			if err != nil {
				return err
			}
			store, err := postgres.New(ctx, postgres.OptionsFromEnv(password), "")
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.RecentEpisodes(ctx, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FINISHED\tEPISODE\tSTEPS\tREWARD\tVEHICLES\tPEDS\tAVG WAIT")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%d\t%d\t%.2f\n",
					r.FinishedAt.Format(time.RFC3339), r.Episode, r.Steps, r.Reward,
					lo.Sum(r.VehiclesCrossed), r.PedestriansServed, r.AvgPedWait)
			}
			w.Flush()

			s := runner.Summarize(rows)
			fmt.Printf("\n%d episodes | mean reward %.2f | best %.2f | mean vehicles %.1f | mean peds %.1f | avg wait %.2f\n",
				s.Episodes, s.MeanReward, s.BestReward, s.MeanVehicles, s.MeanPedestrians, s.MeanPedestrianWait)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of episodes to show")
	return cmd
}
