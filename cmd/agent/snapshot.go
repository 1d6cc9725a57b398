package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nodeagent/internal/app/agent"
	"nodeagent/internal/core/reporter"
	"nodeagent/internal/pkg/protocol"
)

var snapshotJSON bool

// snapshotCmd 采集一次快照后退出
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "采集一次遥测快照并输出",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(nil)
		if err != nil {
			return err
		}

		ctx := context.Background()
		app, err := agent.NewApp(ctx, cfg, "")
		if err != nil {
			return err
		}
		defer app.Stop(ctx)

		snap := app.Snapshot(ctx)
		if snapshotJSON {
			frame, err := protocol.EncodeSnapshot(snap)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(frame))
			return nil
		}
		return reporter.NewConsoleReporter(os.Stdout, cfg.Monitor.Interval, false).Report(ctx, snap)
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "输出线上格式的JSON")
}
