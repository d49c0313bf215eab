package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lordslab/lordslab/internal/app"
	"github.com/lordslab/lordslab/internal/audio"
	"github.com/lordslab/lordslab/internal/config"
	"github.com/lordslab/lordslab/internal/device"
	"github.com/lordslab/lordslab/internal/insight"
	"github.com/lordslab/lordslab/internal/profile"
	"github.com/lordslab/lordslab/internal/store"
)

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive client",
	RunE: func(cmd *cobra.Command, args []string) error {
		noAudio, _ := cmd.Flags().GetBool("no-audio")
		dumpDir, _ := cmd.Flags().GetString("dump-audio")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer st.Close()

		requester := insight.NewRequester(nil)
		if cfg.GeminiAPIKey != "" {
			gen, err := insight.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.InsightModel)
			if err != nil {
				return fmt.Errorf("initializing insight client: %w", err)
			}
			requester = insight.NewRequester(gen)
		}

		a := app.New(app.Options{
			Config:   cfg,
			Profiles: profile.NewManager(st),
			Insight:  requester,
			In:       os.Stdin,
			Out:      os.Stdout,
			NoAudio:  noAudio,
			DumpDir:  dumpDir,
		})
		return a.Run(ctx)
	},
}

func init() {
	runCmd.Flags().Bool("no-audio", false, "run the voice lab text-only, without opening audio devices")
	runCmd.Flags().String("dump-audio", "", "save each voice session's received audio as a WAV file in this directory")
	rootCmd.AddCommand(runCmd)
}

// --- leaderboard ---

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the persisted leaderboard and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.LogLevel)

		st, err := store.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer st.Close()

		records, err := profile.NewManager(st).ListAll()
		if err != nil {
			return err
		}
		app.WriteLeaderboard(os.Stdout, records)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)
}

// --- audio-check ---

var audioCheckCmd = &cobra.Command{
	Use:   "audio-check",
	Short: "Play a short tone to verify the playback path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.LogLevel)

		speaker, err := device.OpenSpeaker(cfg.PlaybackRateHz)
		if err != nil {
			return fmt.Errorf("opening speaker: %w", err)
		}
		defer speaker.Close()

		const toneDuration = 600 * time.Millisecond
		tone := audio.SineTone(440, cfg.PlaybackRateHz, toneDuration, 0.3)
		if err := speaker.Write(tone); err != nil {
			return fmt.Errorf("playing tone: %w", err)
		}
		// Let the device drain before teardown.
		time.Sleep(toneDuration + 200*time.Millisecond)
		fmt.Println("audio ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(audioCheckCmd)
}
