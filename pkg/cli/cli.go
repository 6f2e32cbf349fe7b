// Package cli parses bubocore-server and bubocore-relay command-line arguments.
package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the parsed server startup configuration.
type Config struct {
	ListenAddr       string        // TCP address the session server listens on
	RelayAddr        string        // optional upstream relay address ("" disables relay fan-out)
	ProjectsDir      string        // root directory for saved projects, defaults to ~/.config/bubocore/projects
	ProjectName      string        // optional project to load at startup and save to on shutdown
	DefaultTempo     float64       // starting tempo in BPM
	DefaultQuantum   float64       // starting quantum in beats
	LogLevel         string        // debug, info, warn, error
	Headless         bool          // disable the AudioEngine device kind (CI / no sound card)
	HandshakeTimeout time.Duration // time allowed for a client's SetName handshake
	ShowHelp         bool
}

// ParseArgs parses command line arguments into a Config.
func ParseArgs(args []string) (*Config, error) {
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("bubocore-server", flag.ContinueOnError)

	config := &Config{}

	fs.StringVar(&config.ListenAddr, "listen", ":7890", "session server listen address")
	fs.StringVar(&config.RelayAddr, "relay", "", "upstream relay address (empty disables relay fan-out)")
	fs.StringVar(&config.ProjectsDir, "projects-dir", "", "project storage directory (default ~/.config/bubocore/projects)")
	fs.StringVar(&config.ProjectName, "project", "", "project name to load at startup and save to on shutdown (empty = start with an empty scene)")
	fs.Float64Var(&config.DefaultTempo, "tempo", 120.0, "starting tempo in BPM")
	fs.Float64Var(&config.DefaultQuantum, "quantum", 4.0, "starting quantum in beats")
	fs.StringVar(&config.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&config.LogLevel, "l", "info", "log level (short form)")
	fs.BoolVar(&config.Headless, "headless", false, "disable the in-process audio engine")
	var handshakeSec int
	fs.IntVar(&handshakeSec, "handshake-timeout", 10, "seconds allowed for a client's handshake")
	fs.BoolVar(&config.ShowHelp, "help", false, "show this help")
	fs.BoolVar(&config.ShowHelp, "h", false, "show this help (short form)")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// Environment fallback, consulted only when the flag is at its default value.
	if config.Headless == false {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}
	if config.ProjectsDir == "" {
		if dirEnv := os.Getenv("BUBOCORE_PROJECTS_DIR"); dirEnv != "" {
			config.ProjectsDir = dirEnv
		}
	}
	if config.RelayAddr == "" {
		if relayEnv := os.Getenv("BUBOCORE_RELAY_ADDR"); relayEnv != "" {
			config.RelayAddr = relayEnv
		}
	}
	if handshakeSec == 10 {
		if tEnv := os.Getenv("BUBOCORE_HANDSHAKE_TIMEOUT"); tEnv != "" {
			if t, err := strconv.Atoi(tEnv); err == nil && t > 0 {
				handshakeSec = t
			}
		}
	}

	if handshakeSec <= 0 {
		return nil, fmt.Errorf("handshake-timeout must be positive, got %d", handshakeSec)
	}
	config.HandshakeTimeout = time.Duration(handshakeSec) * time.Second

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	if config.DefaultTempo < 20 || config.DefaultTempo > 999 {
		return nil, fmt.Errorf("tempo must be in [20, 999], got %g", config.DefaultTempo)
	}
	if config.DefaultQuantum <= 0 || config.DefaultQuantum > 16 {
		return nil, fmt.Errorf("quantum must be in (0, 16], got %g", config.DefaultQuantum)
	}

	if config.ProjectsDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving default projects directory: %w", err)
		}
		config.ProjectsDir = home + "/.config/bubocore/projects"
	}

	return config, nil
}

// reorderArgs moves flags ahead of positional arguments so flag.FlagSet,
// which stops parsing at the first non-flag token, sees all of them.
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				if arg != "-h" && arg != "--help" && arg != "--headless" {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// PrintHelp prints usage information.
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `bubocore-server - collaborative live-coding music session server

Usage:
  bubocore-server [options]

Options:
  --listen <addr>                session server listen address (default :7890)
  --relay <addr>                 upstream relay address (default none)
  --projects-dir <path>          project storage directory (default ~/.config/bubocore/projects)
  --project <name>               project to load at startup and save to on shutdown
  --tempo <bpm>                  starting tempo, 20-999 (default 120)
  --quantum <beats>              starting quantum, (0,16] (default 4)
  -l, --log-level <level>        debug, info, warn, error (default info)
  --headless                     disable the in-process audio engine
  --handshake-timeout <seconds>  time allowed for a client's handshake (default 10)
  -h, --help                     show this help

Environment Variables:
  HEADLESS=1                       enable headless mode
  LOG_LEVEL=<level>                log level
  BUBOCORE_PROJECTS_DIR=<path>     projects directory
  BUBOCORE_RELAY_ADDR=<addr>       upstream relay address
  BUBOCORE_HANDSHAKE_TIMEOUT=<s>   handshake timeout in seconds
`)
}
