package main

import (
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/improvscore/go/internal/archive"
	"github.com/mcdev12/improvscore/go/internal/config"
	"github.com/mcdev12/improvscore/go/internal/gateway"
	"github.com/mcdev12/improvscore/go/internal/interop"
	"github.com/mcdev12/improvscore/go/internal/ledger"
	"github.com/mcdev12/improvscore/go/internal/matchtimer"
	"github.com/mcdev12/improvscore/go/internal/metrics"
	"github.com/mcdev12/improvscore/go/internal/remote"
	"github.com/mcdev12/improvscore/go/internal/report"
	"github.com/mcdev12/improvscore/go/internal/rounds"
	"github.com/mcdev12/improvscore/go/internal/store"
	"github.com/mcdev12/improvscore/go/internal/timer"
)

// Services is the wired board: the state store, the core services that
// mutate it and the surfaces that expose it.
type Services struct {
	Store      *store.Store
	Ledger     *ledger.Ledger
	Matches    *ledger.MatchStateManager
	Timers     *matchtimer.Registry
	Rounds     *rounds.Sequencer
	Timer      *timer.Service
	Remote     *remote.Arbiter
	Gateway    *gateway.Service
	Translator *interop.Translator
	Reports    *report.Writer
	Archive    *archive.Archive
	Metrics    *metrics.Metrics
}

// setupServices wires the core services around one state store.
// Store → core services → gateway publisher → control dispatcher.
func setupServices(cfg config.Config, persister store.Persister, arch *archive.Archive, sink gateway.EventSink) *Services {
	clock := clockwork.NewRealClock()
	m := metrics.New()

	st := store.New(persister,
		store.WithRecorder(m),
		store.WithConfig(store.Config{PersistTimeout: cfg.PersistTimeout}),
	)

	gwOpts := []gateway.ManagerOption{gateway.WithRecorder(m)}
	if sink != nil {
		gwOpts = append(gwOpts, gateway.WithSink(sink))
	}
	gw := gateway.NewService(gateway.DefaultConfig(), st, gwOpts...)
	cm := gw.Connections()

	// the match ledger listens to the registry it drives
	timers := matchtimer.NewRegistry(clock, cfg.MatchTimerInterval, nil)
	matches := ledger.NewMatchStateManager(timers, cm, clock)
	timers.SetListener(matches)

	reports := report.NewWriter(cfg.ReportsDir, clock)
	roundOpts := []rounds.Option{rounds.WithReporter(reports)}
	if arch != nil {
		roundOpts = append(roundOpts, rounds.WithArchiver(arch))
	}

	s := &Services{
		Store:   st,
		Ledger:  ledger.NewLedger(st),
		Matches: matches,
		Timers:  timers,
		Rounds:  rounds.NewSequencer(st, clock, roundOpts...),
		Timer:   timer.NewService(st, clock, cm),
		Remote:  remote.NewArbiter(st),
		Gateway: gw,
		Reports: reports,
		Archive: arch,
		Metrics: m,
	}

	cm.SetDispatcher(gateway.NewControlDispatcher(gateway.Controls{
		Store:   s.Store,
		Ledger:  s.Ledger,
		Matches: s.Matches,
		Rounds:  s.Rounds,
		Timer:   s.Timer,
		Remote:  s.Remote,
	}))
	st.Subscribe(cm)

	s.Translator = interop.NewTranslator(interop.Targets{
		Ledger:  s.Ledger,
		Matches: s.Matches,
		Rounds:  s.Rounds,
		Timer:   s.Timer,
		Remote:  s.Remote,
	})
	return s
}
