package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/community-signage/internal/client"
	"github.com/sweeney/community-signage/internal/config"
	"github.com/sweeney/community-signage/internal/content"
	"github.com/sweeney/community-signage/internal/display"
	"github.com/sweeney/community-signage/internal/gpio"
	"github.com/sweeney/community-signage/internal/logging"
	"github.com/sweeney/community-signage/internal/mqtt"
	"github.com/sweeney/community-signage/internal/music"
	"github.com/sweeney/community-signage/internal/status"
	"github.com/sweeney/community-signage/internal/timer"
	"github.com/sweeney/community-signage/internal/web"
)

// Shutdown reasons that are not signals.
const (
	reasonCancelled = "CANCELLED"
	reasonError     = "ERROR"
)

var displayCmd = &cobra.Command{
	Use:   "display",
	Short: "Run a display client",
	Long: "Fetch content from the server and cycle through events, weather and " +
		"announcements, publishing frames and music changes over MQTT.",
	RunE: runDisplayCmd,
}

func init() {
	f := displayCmd.Flags()
	f.String("name", "", "display name, used in MQTT topics")
	f.String("server", "", "content server URL")
	f.String("http", "", `status page address ("" keeps config)`)
	f.String("broker", "", "MQTT broker URL")
	f.Duration("refresh", 0, "content refresh interval")
	f.Duration("heartbeat", 0, "heartbeat interval")
	f.Int("button-pin", 0, "BCM pin of the advance button (negative disables)")
}

func applyDisplayFlags(cmd *cobra.Command, cfg *config.Config) {
	changedString(cmd, "name", &cfg.Display.Name)
	changedString(cmd, "server", &cfg.Display.ServerURL)
	changedString(cmd, "http", &cfg.Display.HTTPAddr)
	changedString(cmd, "broker", &cfg.Display.Broker)
	changedDuration(cmd, "refresh", &cfg.Display.RefreshEvery)
	changedDuration(cmd, "heartbeat", &cfg.Display.Heartbeat)
	changedInt(cmd, "button-pin", &cfg.Display.ButtonPin)
}

func runDisplayCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd, applyDisplayFlags)
	if err != nil {
		return err
	}
	dc := cfg.Display

	tracker := status.NewTracker(time.Now(), statusConfig(dc))
	deps := displayDeps{
		tracker: tracker,
		source: client.New(dc.ServerURL, logging.Component(logger, "client"),
			client.WithHTTPClient(&http.Client{Timeout: dc.FetchTimeout})),
		network: readNetworkInfo,
	}

	if dc.Broker != "" {
		pub, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:             dc.Broker,
			Name:               dc.Name,
			BufferSize:         dc.BufferSize,
			Logger:             logger,
			OnConnectionChange: tracker.SetMQTTConnected,
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		deps.publisher = pub
		deps.conn = pub
	}

	if dc.ButtonPin >= 0 {
		b, err := gpio.NewRealButton(dc.ButtonPin)
		if err != nil {
			logger.Warn().Err(err).Int("pin", dc.ButtonPin).Msg("advance button unavailable")
		} else {
			defer b.Close()
			deps.button = b
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runDisplay(cmd.Context(), dc, deps, sigCh, logger)
}

// displayDeps are the collaborators of a display run. Nil publisher and
// button disable MQTT and the advance button.
type displayDeps struct {
	tracker   *status.Tracker
	source    display.Source
	publisher mqtt.Publisher
	conn      mqtt.ConnectionStatus
	button    gpio.Button
	timer     timer.Timer
	now       func() time.Time
	network   func() *status.NetworkInfo
}

// runDisplay runs the rotation until a signal arrives or ctx is done, then
// publishes a SHUTDOWN status event.
func runDisplay(ctx context.Context, cfg config.DisplayConfig, deps displayDeps, sig <-chan os.Signal, logger zerolog.Logger) error {
	log := logging.Component(logger, "display")
	now := deps.now
	if now == nil {
		now = time.Now
	}
	tracker := deps.tracker

	if deps.network != nil {
		if info := deps.network(); info != nil {
			tracker.SetNetwork(info)
		}
	}
	publishStatus(deps, mqtt.EventStartup, "", now, log)

	renderers := display.Renderers{tracker}
	players := music.Players{tracker}
	if deps.publisher != nil {
		renderers = append(renderers, deps.publisher)
		players = append(players, deps.publisher)
	}
	driver := display.NewDriver(display.Options{
		Timer:    deps.timer,
		Renderer: renderers,
		Tracks:   music.NewSelector(players, logging.Component(logger, "music")),
		Observer: tracker,
		Logger:   log,
		Now:      now,
	})

	initial := fetchInitial(ctx, deps.source, cfg.FetchTimeout, tracker, now, log)

	refresher := display.NewRefresher(deps.source, driver, cfg.RefreshEvery, cfg.FetchTimeout,
		logging.Component(logger, "refresh"))
	refresher.OnResult(tracker.RecordRefresh)
	refresher.Start()
	defer refresher.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	reason := reasonCancelled
	g.Go(func() error {
		select {
		case s := <-sig:
			reason = signalName(s)
			log.Info().Str("signal", reason).Msg("received signal, shutting down")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		return driver.Run(gctx, initial)
	})

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker,
			web.WithAdvance(driver.RequestAdvance),
			web.WithLogger(logging.Component(logger, "web")))
		g.Go(func() error {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("http status server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	if deps.button != nil {
		g.Go(func() error {
			return gpio.Watch(gctx, deps.button, cfg.ButtonPoll, cfg.ButtonDebounce,
				logging.Component(logger, "button"), func() {
					log.Info().Msg("advance button pressed")
					tracker.RecordButtonPress()
					driver.RequestAdvance()
				})
		})
	}

	if deps.publisher != nil && cfg.Heartbeat > 0 {
		g.Go(func() error {
			t := time.NewTicker(cfg.Heartbeat)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					if deps.network != nil {
						if info := deps.network(); info != nil {
							tracker.SetNetwork(info)
						}
					}
					publishStatus(deps, mqtt.EventHeartbeat, "", now, log)
				}
			}
		})
	}

	log.Info().
		Str("name", cfg.Name).
		Str("server", cfg.ServerURL).
		Str("broker", cfg.Broker).
		Dur("refresh", cfg.RefreshEvery).
		Dur("heartbeat", cfg.Heartbeat).
		Msg("display started")

	err := g.Wait()
	if err != nil {
		reason = reasonError
		log.Error().Err(err).Msg("display stopped on error")
	}
	publishStatus(deps, mqtt.EventShutdown, reason, now, log)
	return err
}

// fetchInitial loads the first snapshot. When the server is unreachable the
// rotation starts on default settings with no content and waits for the
// next refresh.
func fetchInitial(ctx context.Context, src display.Source, timeout time.Duration, tracker *status.Tracker, now func() time.Time, log zerolog.Logger) content.Snapshot {
	fctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	snap, err := src.Fetch(fctx)
	tracker.RecordRefresh(now(), err)
	if err != nil {
		log.Warn().Err(err).Msg("initial content fetch failed, starting empty")
		return content.Snapshot{
			Settings:  content.DefaultSettings(),
			Events:    []content.Event{},
			FetchedAt: now(),
		}
	}
	return snap
}

// publishStatus publishes a retained system event carrying the full status
// snapshot. Heartbeats are not retained.
func publishStatus(deps displayDeps, event, reason string, now func() time.Time, log zerolog.Logger) {
	if deps.publisher == nil {
		return
	}
	if deps.conn != nil {
		deps.tracker.SetMQTTConnected(deps.conn.IsConnected())
	}
	snap := deps.tracker.Snapshot()
	err := deps.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  now(),
		Event:      event,
		Reason:     reason,
		Retained:   event != mqtt.EventHeartbeat,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to publish system event")
		return
	}
	log.Debug().Str("event", event).Msg("published system event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func statusConfig(dc config.DisplayConfig) status.Config {
	return status.Config{
		Name:           dc.Name,
		ServerURL:      dc.ServerURL,
		Broker:         dc.Broker,
		HTTPAddr:       dc.HTTPAddr,
		RefreshEveryMs: dc.RefreshEvery.Milliseconds(),
		HeartbeatMs:    dc.Heartbeat.Milliseconds(),
		ButtonPin:      dc.ButtonPin,
	}
}
