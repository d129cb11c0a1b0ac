// -----------------------------------------------------------------------
// Last Modified: Friday, 8th November 2025 4:00:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/ternarybob/aestimo/internal/app"
)

// runBenchmarks prints the benchmark vector for a sector so operators can
// inspect what the scorer will compare against.
func runBenchmarks(args []string) {
	fs := flag.NewFlagSet("benchmarks", flag.ExitOnError)

	var configFiles configPaths
	fs.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	fs.Var(&configFiles, "c", "Configuration file path (shorthand)")

	sector := fs.String("sector", "saas", "Sector to print benchmarks for")
	logLevel := fs.String("log-level", "", "Log level override (debug, info, warn, error)")
	fs.Parse(args)

	config, logger := loadConfig(configFiles, "", "", *logLevel)

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	data, err := application.BenchmarkService.GetBenchmarks(context.Background(), strings.ToLower(*sector))
	if err != nil {
		application.Close()
		logger.Fatal().Err(err).Str("sector", *sector).Msg("Failed to fetch benchmarks")
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		application.Close()
		logger.Fatal().Err(err).Msg("Failed to encode benchmarks")
	}

	fmt.Println(string(out))
}
