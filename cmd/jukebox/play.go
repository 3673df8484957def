package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"jukebox/internal/jukebox"
	"jukebox/internal/nowplaying"
	"jukebox/internal/player"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	dryRun     bool
	playSpeed  float64
	playArtist string
	playAlbum  string
	playTracks int
)

var playCmd = &cobra.Command{
	Use:   "play [root]",
	Short: "Play the library in sequence",
	Long: `Play opens the library and plays the flat track list, one artist or one
album, looping at the end. Without an audio device the dry run advances a
clock through each track's measured duration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dryRun {
			return errors.New("no audio output is available, run with --dry-run")
		}
		cfg, logger, err := setup(args)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		// the clock looks durations up in the library once it is open
		var j *jukebox.Jukebox
		j = jukebox.New(cfg, logger, func(sink player.StatusSink) player.Player {
			return player.NewClockPlayer(sink, player.ClockOptions{
				DurationOf: func(path string) time.Duration {
					if t, ok := j.Library().Lookup(path); ok {
						return time.Duration(t.Duration) * time.Second
					}
					return 0
				},
				Speed:  playSpeed,
				Logger: logger,
			})
		})
		j.Start(ctx)
		defer j.Shutdown()

		// read events before the scan so progress cannot back up
		followed := make(chan error, 1)
		go func() {
			followed <- followPlayback(ctx, j.Events(), cmd.OutOrStdout(), playTracks, logger)
		}()

		if _, err := j.OpenLibrary(ctx, cfg.Library.RootPath); err != nil {
			return err
		}

		switch {
		case playAlbum != "":
			err = j.SelectAlbum(playArtist, playAlbum)
		case playArtist != "":
			err = j.SelectArtist(playArtist)
		}
		if err != nil {
			return err
		}

		if j.Snapshot().Length == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to play")
			return nil
		}
		if err := j.Play(); err != nil {
			return err
		}
		return <-followed
	},
}

// followPlayback prints a line for every track that starts playing. With a
// limit it returns once that many tracks have played to the end.
func followPlayback(ctx context.Context, events <-chan jukebox.Event, out io.Writer, limit int, logger *logrus.Logger) error {
	lastPath := ""
	lastFinished := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind != jukebox.PlaybackChanged {
				continue
			}
			snap := ev.Playback
			if snap.Err != nil {
				return snap.Err
			}
			if limit > 0 && snap.Finished >= limit {
				return nil
			}
			if snap.State != player.Playing || snap.Track == nil {
				continue
			}
			// a one-track sequence replays the same path
			if snap.Track.Path == lastPath && snap.Finished == lastFinished {
				continue
			}
			lastPath = snap.Track.Path
			lastFinished = snap.Finished
			fmt.Fprintf(out, "[%d/%d] %s\n", snap.Index+1, snap.Length, nowplaying.Line(ev.NowPlaying))
			logger.WithFields(logrus.Fields{
				"index":    snap.Index,
				"path":     snap.Track.Path,
				"finished": snap.Finished,
			}).Debug("Now playing")
		}
	}
}

func init() {
	playCmd.Flags().BoolVar(&dryRun, "dry-run", true, "simulate playback with a clock instead of an audio device")
	playCmd.Flags().Float64Var(&playSpeed, "speed", 1, "clock speed multiplier for --dry-run")
	playCmd.Flags().StringVar(&playArtist, "artist", "", "play only this artist")
	playCmd.Flags().StringVar(&playAlbum, "album", "", "play only this album of --artist")
	playCmd.Flags().IntVar(&playTracks, "tracks", 0, "stop after this many tracks (0 plays forever)")
	rootCmd.AddCommand(playCmd)
}
