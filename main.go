package main

import (
	"flag"
	"fmt"
	"os"
	"rsd/internal/di"
	"rsd/internal/structures"
)

func main() {
	flags := &structures.CliFlags{}
	flag.StringVar(&flags.ConfigPath, "config", "config.yaml", "path to config file")
	flag.BoolVar(&flags.DebugMode, "debug", false, "enable debug logging to console")
	flag.Parse()

	_, err := di.InitApp(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rsd: %s\n", err)
		os.Exit(1)
	}
}
