package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/faiface/beep"
	goerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/nickysemenza/gola"
	"github.com/robmorgan/metronome/beatosc"
	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/light"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/metronome"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/robmorgan/metronome/search"
	"github.com/robmorgan/metronome/synth"
	"github.com/robmorgan/metronome/ui"
	"github.com/robmorgan/metronome/utils"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"k8s.io/utils/clock"
)

var ErrNoSongs = errors.New("no songs found")

// loadConfig reads --config when given and applies the tempo and time signature flags on top.
func loadConfig(cmd *cli.Command) (config.MetronomeConfig, error) {
	cfg := config.NewMetronomeConfig()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if cmd.IsSet("tempo") {
		cfg.Tempo.Default = utils.Clamp(cmd.Float("tempo"), cfg.Tempo.Min, cfg.Tempo.Max)
	}
	if ts := cmd.String("timesig"); ts != "" {
		sig, err := rhythm.ParseTimeSignature(ts)
		if err != nil {
			return cfg, err
		}
		cfg.Measure.BeatsPerBar = sig.Beats
	}

	return cfg, cfg.Validate()
}

// setupLogging applies --log-level and --log-file. With quiet set and no log file, logs are
// discarded so they don't tear the terminal UI.
func setupLogging(cmd *cli.Command, quiet bool) (io.Closer, error) {
	if err := logger.SetLevel(cmd.String("log-level")); err != nil {
		return nil, err
	}

	if path := cmd.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, goerrors.WithStackTrace(err)
		}
		logger.SetOutput(f)
		return f, nil
	}

	if quiet {
		logger.SetOutput(io.Discard)
	}
	return io.NopCloser(nil), nil
}

func play(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.OSC.Enabled = cfg.OSC.Enabled || cmd.Bool("osc")
	cfg.DMX.Enabled = cfg.DMX.Enabled || cmd.Bool("ola")

	return Run(ctx, cmd, cfg, nil)
}

// Run starts the metronome with cfg and blocks until the user quits or the process is
// interrupted. A non-nil song is applied before playback starts.
func Run(ctx context.Context, cmd *cli.Command, cfg config.MetronomeConfig, song *search.Song) error {
	headless := cmd.Bool("headless")

	closer, err := setupLogging(cmd, !headless)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logger.GetProjectLogger()
	wg := sync.WaitGroup{}

	log.Info("Initializing audio device...")
	device := synth.DefaultDevice()
	sr := beep.SampleRate(cfg.Click.SampleRate)
	if err := device.Init(sr, time.Duration(cfg.Click.BufferMs)*time.Millisecond); err != nil {
		log.WithError(err).Warn("Audio device unavailable, clicks will be silent")
	}
	defer device.Close()

	accent, normal := synth.ClicksFromConfig(cfg.Click)
	ctrl, err := metronome.NewController(cfg, clock.RealClock{}, synth.NewSynthesizer(device, accent, normal))
	if err != nil {
		return err
	}

	if cfg.OSC.Enabled {
		log.WithFields(logrus.Fields{"host": cfg.OSC.Host, "port": cfg.OSC.Port}).Info("Broadcasting beats over OSC...")
		broadcaster := beatosc.NewBroadcaster(cfg.OSC)
		ctrl.Subscribe(broadcaster)
		wg.Add(1)
		go broadcaster.Run(ctx, &wg)
	}

	if cfg.DMX.Enabled {
		log.Info("Connecting to OLA...")
		client, err := gola.New(cfg.DMX.OLAAddr)
		if err != nil {
			log.Errorf("could not connect to OLA: %v", err)
		} else {
			state := light.NewDMXState()
			flash := light.NewBeatFlash(cfg.DMX, clock.RealClock{}, state)
			ctrl.Subscribe(flash)
			wg.Add(1)
			go light.SendDMXWorker(ctx, client, clock.RealClock{}, flash.FrameInterval(), state, flash.Update, &wg)
		}
	}

	if song != nil {
		search.Apply(ctrl, *song)
	}

	if headless {
		ctrl.Start()
		log.WithFields(logrus.Fields{"tempo": float64(ctrl.Tempo()), "measure_length": ctrl.MeasureLength()}).Info("Playing until interrupted")
		<-ctx.Done()
	} else if err := ui.Run(ctx, ctrl); err != nil {
		log.WithError(err).Error("Terminal UI failed")
	}

	log.Println("shutting down metronome")
	_ = ctrl.Close()
	cancel()
	wg.Wait()
	return nil
}

func render(_ context.Context, cmd *cli.Command) error {
	closer, err := setupLogging(cmd, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bars := cmd.Int("bars")
	if bars < 1 {
		return fmt.Errorf("bars must be at least 1, got %d", bars)
	}

	sr := beep.SampleRate(cfg.Click.SampleRate)
	accent, normal := synth.ClicksFromConfig(cfg.Click)
	track := synth.RenderClickTrack(sr, rhythm.Tempo(cfg.Tempo.Default), cfg.Measure.BeatsPerBar, bars, accent, normal)

	out := cmd.String("out")
	if err := synth.WriteWAV(out, sr, track); err != nil {
		return err
	}

	logger.GetProjectLogger().WithFields(logrus.Fields{
		"path":  out,
		"bars":  bars,
		"tempo": cfg.Tempo.Default,
	}).Info("Click track written")
	return nil
}

func searchSongs(ctx context.Context, cmd *cli.Command) error {
	closer, err := setupLogging(cmd, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if key := cmd.String("api-key"); key != "" {
		cfg.Search.APIKey = key
	}

	query := strings.Join(cmd.Args().Slice(), " ")
	songs, err := search.NewClient(cfg.Search, nil).Search(ctx, query)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return fmt.Errorf("%w for %q", ErrNoSongs, query)
	}

	for i, song := range songs {
		fmt.Printf("%2d. %s\n", i+1, song)
	}

	if !cmd.Bool("play") {
		return nil
	}

	pick := cmd.Int("pick")
	if pick < 1 || pick > len(songs) {
		return fmt.Errorf("--pick must be between 1 and %d", len(songs))
	}
	return Run(ctx, cmd, cfg, &songs[pick-1])
}
