package main

import (
	"fmt"

	"gov-monitoring/internal/config"
	"gov-monitoring/internal/endpoint"
	"gov-monitoring/internal/logger"
	"gov-monitoring/internal/moniker"
	"gov-monitoring/internal/report"

	"github.com/spf13/cobra"
)

type networksArguments struct {
	Monikers bool
}

var networksArgs networksArguments

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "Validate the networks file and print the catalog",
	Args:  cobra.NoArgs,
	RunE:  networksRun,
}

func init() {
	networksCmd.Flags().BoolVar(&networksArgs.Monikers, "monikers", false, "look up the validator moniker on each standard network")
}

func networksRun(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	catalog, err := config.LoadCatalog(cfg.NetworksFile)
	if err != nil {
		return err
	}

	var monikers map[string]string
	if networksArgs.Monikers {
		log := logger.New(cfg.Debug, cfg.LogFormat)
		r := moniker.NewResolver(endpoint.NewClient(nil, cfg.UserAgent, nil), cfg.RequestTimeout, log)
		monikers = r.ResolveAll(cmd.Context(), catalog)
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Networks(catalog, monikers))
	return nil
}
