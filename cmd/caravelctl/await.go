package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/caraveld/caravel"
	"github.com/caraveld/caravel/api"
)

const statusPollInterval = 2 * time.Second

var errorWantedNoArgs = errors.New("expected no (non-flag) arguments")

// await follows a deployment until it reaches a terminal state,
// drawing the fleet's advisory progress while it rolls. The returned
// error encodes the exit status: nil for Succeeded and RolledBack,
// non-nil for Failed.
func await(ctx context.Context, client api.Server, d caravel.Deployment) error {
	var (
		bar      *pb.ProgressBar
		lastSeen caravel.Status
	)
	finishBar := func() {
		if bar != nil {
			bar.Finish()
			bar = nil
		}
	}
	defer finishBar()

	for {
		status, err := client.Status(ctx, d.Environment)
		if err != nil {
			return err
		}
		latest := status.Latest
		if latest == nil || latest.ID != d.ID {
			return fmt.Errorf("deployment %s is no longer the latest for %s", d.ID, d.Environment)
		}

		if latest.Status != lastSeen {
			lastSeen = latest.Status
			finishBar()
			fmt.Fprintf(os.Stdout, "status: %s\n", latest.Status)
		}

		switch latest.Status {
		case caravel.StatusRollingOut, caravel.StatusRollingBack:
			if bar == nil {
				bar = pb.New(100)
				bar.Start()
			}
			bar.SetCurrent(int64(latest.Progress))
		case caravel.StatusSucceeded:
			fmt.Fprintf(os.Stdout, "version %s is live on %s\n", latest.Version, latest.Environment)
			return nil
		case caravel.StatusRolledBack:
			if latest.Cause == caravel.CauseRollback {
				fmt.Fprintf(os.Stdout, "rolled back to %s on %s\n", latest.Version, latest.Environment)
			} else {
				fmt.Fprintf(os.Stdout, "%s failed verification; rolled back to %s on %s\n",
					latest.Version, latest.RollbackTo, latest.Environment)
			}
			return nil
		case caravel.StatusFailed:
			return fmt.Errorf("deployment failed: %s", latest.Reason)
		}

		select {
		case <-time.After(statusPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func makeExample(examples ...string) string {
	var s string
	for _, e := range examples {
		s += "  " + e + "\n"
	}
	return s
}
