package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Reader779/Microgrid/src/control"
	"github.com/Reader779/Microgrid/src/grid"
	"github.com/Reader779/Microgrid/src/metrics"
)

// DefaultRefreshInterval is the periodic advisory refresh
const DefaultRefreshInterval = 8 * time.Second

func noticeLevel(s control.Severity) zerolog.Level {
	switch s {
	case control.SeverityCritical:
		return zerolog.ErrorLevel
	case control.SeverityWarning:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// coordinatorWorker is the single thread of control for the analysis core.
// Telemetry, operator actions, timer firings and the refresh tick all arrive
// here, so the coordinator and machine are never touched concurrently.
func coordinatorWorker(
	ctx context.Context,
	coord *Coordinator,
	sched *control.LoopScheduler,
	readingChan <-chan grid.Reading,
	actionChan <-chan OperatorAction,
	refresh time.Duration,
) {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	log.Info().Dur("refresh", refresh).Msg("Coordinator started")

	for {
		select {
		case r := <-readingChan:
			coord.HandleReading(r)

		case a := <-actionChan:
			metrics.OperatorActions.WithLabelValues(a.Kind.String()).Inc()
			notice := coord.HandleAction(a)
			log.WithLevel(noticeLevel(notice.Severity)).
				Str("action", a.Kind.String()).
				Str("severity", notice.Severity.String()).
				Msg(notice.Message)

		case f := <-sched.C():
			sched.Fire(f)

		case <-ticker.C:
			coord.Refresh()

		case <-ctx.Done():
			sched.Stop()
			log.Info().Msg("Coordinator stopped")
			return
		}
	}
}

// snapshotEmitter returns a non-blocking emit func for the coordinator. A
// slow consumer loses intermediate snapshots, never the loop.
func snapshotEmitter(out chan<- Snapshot) func(Snapshot) {
	return func(s Snapshot) {
		select {
		case out <- s:
		default:
			log.Debug().Msg("Snapshot channel full, dropping update")
		}
	}
}
