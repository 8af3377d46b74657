package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sweeney/community-signage/internal/client"
	"github.com/sweeney/community-signage/internal/config"
	"github.com/sweeney/community-signage/internal/display"
	"github.com/sweeney/community-signage/internal/logging"
	"github.com/sweeney/community-signage/internal/music"
	"github.com/sweeney/community-signage/internal/rotation"
	"github.com/sweeney/community-signage/internal/timer"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the rotation a display would show",
	Long: "Fetch content once and run the rotation on a virtual clock, printing " +
		"every frame and music change with its offset from the start.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, applyPlanFlags)
		if err != nil {
			return err
		}
		span, _ := cmd.Flags().GetDuration("span")
		maxFrames, _ := cmd.Flags().GetInt("frames")

		src := client.New(cfg.Display.ServerURL, logging.Component(logger, "client"),
			client.WithHTTPClient(&http.Client{Timeout: cfg.Display.FetchTimeout}))
		return runPlan(cmd.Context(), src, cmd.OutOrStdout(), span, maxFrames, logger)
	},
}

func init() {
	f := planCmd.Flags()
	f.String("server", "", "content server URL")
	f.Duration("span", 30*time.Minute, "virtual time to simulate")
	f.Int("frames", 200, "stop after this many frames")
}

func applyPlanFlags(cmd *cobra.Command, cfg *config.Config) {
	changedString(cmd, "server", &cfg.Display.ServerURL)
}

// runPlan simulates the rotation over span of virtual time.
func runPlan(ctx context.Context, src display.Source, out io.Writer, span time.Duration, maxFrames int, logger zerolog.Logger) error {
	snap, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch content: %w", err)
	}

	fake := timer.NewFake()
	p := &planPrinter{out: out, fake: fake}
	visits := 0
	d := display.NewDriver(display.Options{
		Timer:    fake,
		Renderer: p,
		Tracks:   music.NewSelector(p, zerolog.Nop()),
		Observer: p,
		Logger:   logging.Component(logger, "plan"),
		Now:      func() time.Time { return snap.FetchedAt.Add(fake.Elapsed()) },
		NewVisitID: func() string {
			visits++
			return fmt.Sprintf("visit-%d", visits)
		},
	})

	d.Start(ctx, snap)
	for maxFrames <= 0 || p.frames < maxFrames {
		next, ok := fake.Next()
		if !ok || fake.Elapsed()+next > span {
			break
		}
		seq, _ := fake.Fire()
		d.Fire(ctx, seq)
	}

	s := d.State()
	switch s.Phase {
	case rotation.PhaseIdle:
		fmt.Fprintf(out, "%-8s idle: %s\n", offset(fake.Elapsed()), p.idleReason)
	case rotation.PhaseStatic:
		fmt.Fprintf(out, "%-8s static, no further changes\n", offset(fake.Elapsed()))
	}
	fmt.Fprintf(out, "%d frames, %d visits in %s\n", p.frames, visits, offset(fake.Elapsed()))
	return nil
}

// planPrinter writes frames, music changes and idle notices as text.
type planPrinter struct {
	out        io.Writer
	fake       *timer.Fake
	frames     int
	idleReason string
}

func (p *planPrinter) Render(_ context.Context, f display.Frame) error {
	p.frames++
	_, err := fmt.Fprintf(p.out, "%-8s %-14s %d/%d  pass %d  %s\n",
		offset(p.fake.Elapsed()), f.Mode, f.Unit+1, f.Units, f.Cycle, f.Headline())
	return err
}

func (p *planPrinter) Play(_ context.Context, t music.Track) error {
	line := fmt.Sprintf("music %s: %s", t.Kind, strings.Join(t.Files, ", "))
	if t.Stopped {
		line = "music stopped"
	}
	_, err := fmt.Fprintf(p.out, "%-8s   %s\n", offset(p.fake.Elapsed()), line)
	return err
}

func (p *planPrinter) Observe(_ rotation.State, effects []rotation.Effect) {
	for _, e := range effects {
		if e.Type == rotation.EffectIdle {
			p.idleReason = e.Reason
		}
	}
}

func offset(d time.Duration) string {
	return "+" + d.Round(time.Second).String()
}
