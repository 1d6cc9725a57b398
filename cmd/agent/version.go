package main

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"nodeagent/internal/pkg/version"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本与协议信息",
	Long:  "显示 NodeAgent 版本、与采集端通信的协议版本、握手使用的 User-Agent 以及构建信息。",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if versionJSON {
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		out, err := pterm.DefaultTable.WithData(info.Rows()).Srender()
		if err != nil {
			return fmt.Errorf("failed to render version: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "以JSON格式输出")
	rootCmd.AddCommand(versionCmd)
}
