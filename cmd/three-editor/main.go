package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "projects" {
		if err := runProjects(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		return
	}

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "serve" {
		args = args[1:]
	}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: three-editor [serve] [flags]\n       three-editor projects <list|create|delete> [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n  serve     Run the relay, aggregator and engine with a terminal monitor (default)\n  projects  Manage project directories\n")
	}

	var opts serveOptions
	fs.StringVar(&opts.configPath, "config", "", "path to configuration file (default: "+defaultConfigFile+" if present)")
	fs.StringVar(&opts.envFile, "env", ".env", "path to .env file (ignored if missing)")
	fs.StringVar(&opts.project, "open", "", "project directory to load into the engine on start")
	fs.StringVar(&opts.logFile, "log-file", "", "write logs to this file while the monitor is running")
	fs.BoolVar(&opts.headless, "headless", false, "run without the terminal monitor and log to stderr")
	_ = fs.Parse(args)

	if err := loadDotEnv(opts.envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := runServe(opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
