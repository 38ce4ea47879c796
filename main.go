package main

import (
	"context"
	"os"

	"github.com/robmorgan/metronome/logger"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		logger.GetProjectLogger().Fatalf("metronome: %v", err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "metronome",
		Usage:   "A practice metronome for the terminal",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to this file instead of stderr",
			},
		},
		Commands: []*cli.Command{
			playCommand(),
			renderCommand(),
			searchCommand(),
		},
	}
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Start the interactive metronome",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:    "tempo",
				Aliases: []string{"t"},
				Usage:   "Tempo in beats per minute",
			},
			&cli.StringFlag{
				Name:  "timesig",
				Usage: "Time signature, e.g. 3/4",
			},
			&cli.BoolFlag{
				Name:  "headless",
				Usage: "Play without the terminal UI until interrupted",
			},
			&cli.BoolFlag{
				Name:  "osc",
				Usage: "Broadcast every beat over OSC",
			},
			&cli.BoolFlag{
				Name:  "ola",
				Usage: "Flash a DMX channel through OLA on every beat",
			},
		},
		Action: play,
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Render a click track to a WAV file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output file path",
				Value:   "click.wav",
			},
			&cli.IntFlag{
				Name:  "bars",
				Usage: "Number of bars to render",
				Value: 8,
			},
			&cli.FloatFlag{
				Name:    "tempo",
				Aliases: []string{"t"},
				Usage:   "Tempo in beats per minute",
			},
			&cli.StringFlag{
				Name:  "timesig",
				Usage: "Time signature, e.g. 3/4",
			},
		},
		Action: render,
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Look up the tempo of a song on GetSongBPM",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "GetSongBPM API key",
				Sources: cli.EnvVars("GETSONGBPM_API_KEY"),
			},
			&cli.IntFlag{
				Name:  "pick",
				Usage: "Result to use with --play, starting at 1",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "play",
				Usage: "Start the metronome at the tempo of the picked song",
			},
			&cli.BoolFlag{
				Name:  "headless",
				Usage: "With --play, play without the terminal UI",
			},
		},
		Action: searchSongs,
	}
}
