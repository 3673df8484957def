package main

import (
	"fmt"
	"io"
	"os"

	"jukebox/internal/jukebox"
	"jukebox/internal/library"
	"jukebox/internal/player"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [root]",
	Short: "Scan a music directory and print the library",
	Long: `Scan walks the library root, reads the tags of every .mp3, .wav, .flac
and .ogg file and prints the Artist / Album / Track hierarchy.
Interrupting the scan prints what was found so far.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(args)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		j := jukebox.New(cfg, logger, func(sink player.StatusSink) player.Player {
			return player.NewClockPlayer(sink, player.ClockOptions{Logger: logger})
		})
		j.Start(ctx)

		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		eventsDone := make(chan struct{})
		go func() {
			defer close(eventsDone)
			for ev := range j.Events() {
				if ev.Kind == jukebox.ScanProgress {
					bar.Describe(fmt.Sprintf("Scanning %d/%d", ev.Progress.Done, ev.Progress.Found))
					_ = bar.Set(ev.Progress.Done)
				}
			}
		}()

		ix, err := j.OpenLibrary(ctx, cfg.Library.RootPath)
		j.Shutdown()
		<-eventsDone
		_ = bar.Finish()

		switch {
		case library.IsCancelled(err):
			fmt.Fprintln(cmd.ErrOrStderr(), "Scan interrupted, showing partial library")
		case err != nil:
			return err
		}

		printLibrary(cmd.OutOrStdout(), ix)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func printLibrary(w io.Writer, ix *library.Index) {
	for _, artist := range ix.Artists() {
		fmt.Fprintln(w, artist)
		for _, album := range ix.Albums(artist) {
			fmt.Fprintf(w, "  %s\n", album)
			for _, t := range ix.Tracks(artist, album) {
				number := "--"
				if t.HasTrackNumber() {
					number = fmt.Sprintf("%02d", t.TrackNumber)
				}
				fmt.Fprintf(w, "    %s. %s (%s)\n", number, t.Title, t.FileName())
			}
		}
	}
	fmt.Fprintf(w, "%d tracks, %d artists\n", ix.Len(), len(ix.Artists()))
}
