package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"attendance/internal/queue"
	"attendance/internal/store"
)

var (
	checkinSession string
	checkinDevice  string
)

var checkinCmd = &cobra.Command{
	Use:   "checkin <admission-no>",
	Short: "Queue an automatic check-in for the worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		rdb, err := store.NewRedis(cmd.Context(), cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()

		q := queue.NewRedisQueue(rdb.Client, cfg.CheckinQueue, logger)
		c := queue.Checkin{AdmissionNo: args[0], Session: checkinSession, Device: checkinDevice, At: time.Now().UTC()}
		if err := q.Publish(cmd.Context(), c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %s on %s\n", c.AdmissionNo, cfg.CheckinQueue)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkinCmd)
	checkinCmd.Flags().StringVar(&checkinSession, "session", "", "morning or evening (default: from the worker's clock)")
	checkinCmd.Flags().StringVar(&checkinDevice, "device", "attendctl", "device id recorded as the marker")
}
