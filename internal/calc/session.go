// Package calc estimates battle odds by fighting the same battle many times
// over disposable copies of the game state.
package calc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lawnchairsociety/battlecalc/internal/calcerr"
	"github.com/lawnchairsociety/battlecalc/internal/engine"
	"github.com/lawnchairsociety/battlecalc/internal/logger"
	"github.com/lawnchairsociety/battlecalc/internal/policy"
	"github.com/lawnchairsociety/battlecalc/internal/results"
	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

// MaxWorkers caps the default worker count.
const MaxWorkers = 16

// Request describes the battle to simulate.
type Request struct {
	Attacker   string
	Defender   string
	Location   string
	Attacking  []snapshot.Unit
	Defending  []snapshot.Unit
	Bombarding []snapshot.Unit
	// Effects names territory effects from the ruleset.
	Effects             []string
	Amphibious          bool
	RetreatDestinations []string
	Trials              int
}

// Option configures a Session.
type Option func(*Session)

// WithWorkers sets the number of parallel workers. Values below one are
// ignored.
func WithWorkers(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithSeed makes the dice reproducible: two sessions with the same seed,
// worker count and configuration produce the same results.
func WithSeed(seed uint64) Option {
	return func(s *Session) {
		s.seed = seed
		s.seeded = true
	}
}

// WithLogger sets the logger the session reports to.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Session is one odds calculator. Configure it, then Run it as often as
// needed. Setters fail with calcerr.ErrBusy while a run is in progress.
type Session struct {
	engine      engine.Engine
	workerCount int
	seed        uint64
	seeded      bool
	logger      *slog.Logger

	mu            sync.Mutex
	state         *snapshot.Snapshot
	attacker      *policy.Policy
	defender      *policy.Policy
	policiesDirty bool
	request       *Request
	workers       []*worker
	running       bool
	runs          int

	cancelled atomic.Bool
}

// New creates a session around a battle engine.
func New(eng engine.Engine, opts ...Option) *Session {
	s := &Session{
		engine:      eng,
		workerCount: min(runtime.NumCPU(), MaxWorkers),
		logger:      logger.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSnapshot hands the session the game state to simulate in. The session
// owns the snapshot from now on. Any previous configuration is discarded.
func (s *Session) SetSnapshot(state *snapshot.Snapshot) error {
	if state == nil {
		return fmt.Errorf("%w: nil snapshot", calcerr.ErrInvalidConfiguration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return calcerr.ErrBusy
	}
	s.state = state
	s.request = nil
	s.workers = nil
	return nil
}

// CreateUnits allocates units with ids that are fresh in the session's
// snapshot, for use in a Request.
func (s *Session) CreateUnits(kind, owner string, n int) ([]snapshot.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, calcerr.ErrBusy
	}
	if s.state == nil {
		return nil, calcerr.ErrNotReady
	}
	units, err := s.state.CreateUnits(kind, owner, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", calcerr.ErrInvalidConfiguration, err)
	}
	return units, nil
}

// SetPolicies replaces both sides' policies. They take effect at the next
// run.
func (s *Session) SetPolicies(attacker, defender *policy.Policy) error {
	if attacker == nil || defender == nil {
		return fmt.Errorf("%w: both sides need a policy", calcerr.ErrInvalidConfiguration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return calcerr.ErrBusy
	}
	if s.state != nil {
		cat := s.state.Ruleset().Catalog
		if err := attacker.Validate(cat); err != nil {
			return fmt.Errorf("attacker: %w", err)
		}
		if err := defender.Validate(cat); err != nil {
			return fmt.Errorf("defender: %w", err)
		}
	}
	a, d := *attacker, *defender
	s.attacker, s.defender = &a, &d
	s.policiesDirty = true
	return nil
}

// Configure validates a battle and prepares one snapshot clone per worker.
// On failure the session is left without any configuration.
func (s *Session) Configure(req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return calcerr.ErrBusy
	}
	if s.state == nil || s.attacker == nil || s.defender == nil {
		return fmt.Errorf("%w: set a snapshot and policies first", calcerr.ErrNotReady)
	}

	s.request = nil
	s.workers = nil
	if err := s.validate(&req); err != nil {
		return err
	}

	n := min(s.workerCount, req.Trials)
	workers := make([]*worker, n)
	for i := range workers {
		w, err := newWorker(i, s.state, &req, s.rng(i))
		if err != nil {
			return fmt.Errorf("%w: %v", calcerr.ErrInvalidConfiguration, err)
		}
		if err := w.setPolicies(*s.attacker, *s.defender); err != nil {
			return err
		}
		workers[i] = w
	}

	s.request = &req
	s.workers = workers
	s.policiesDirty = false
	s.logger.Info("odds calculation configured",
		"attacker", req.Attacker,
		"defender", req.Defender,
		"location", req.Location,
		"attacking", len(req.Attacking),
		"defending", len(req.Defending),
		"trials", req.Trials,
		"workers", n)
	return nil
}

func (s *Session) validate(req *Request) error {
	rs := s.state.Ruleset()
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", calcerr.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
	}

	if !rs.HasPlayer(req.Attacker) {
		return invalid("unknown attacker %q", req.Attacker)
	}
	if !rs.HasPlayer(req.Defender) {
		return invalid("unknown defender %q", req.Defender)
	}
	if req.Attacker == req.Defender {
		return invalid("%s cannot attack itself", req.Attacker)
	}
	if !s.state.HasTerritory(req.Location) {
		return invalid("unknown location %q", req.Location)
	}
	if req.Trials < 1 {
		return invalid("trial count %d, need at least 1", req.Trials)
	}
	for _, name := range req.Effects {
		if _, ok := rs.Effect(name); !ok {
			return invalid("unknown territory effect %q", name)
		}
	}
	for _, name := range req.RetreatDestinations {
		if !s.state.HasTerritory(name) {
			return invalid("unknown retreat destination %q", name)
		}
	}

	seen := make(map[snapshot.UnitID]bool)
	check := func(role string, units []snapshot.Unit, attackerOwned bool) error {
		for _, u := range units {
			if !rs.Catalog.Has(u.Kind) {
				return invalid("%s unit %d has unknown kind %q", role, u.ID, u.Kind)
			}
			if (u.Owner == req.Attacker) != attackerOwned {
				return invalid("%s unit %d is owned by %q", role, u.ID, u.Owner)
			}
			if seen[u.ID] {
				return invalid("unit %d is used twice", u.ID)
			}
			seen[u.ID] = true
		}
		return nil
	}
	if err := check("attacking", req.Attacking, true); err != nil {
		return err
	}
	if err := check("bombarding", req.Bombarding, true); err != nil {
		return err
	}
	if err := check("defending", req.Defending, false); err != nil {
		return err
	}

	cat := rs.Catalog
	if err := s.attacker.Validate(cat); err != nil {
		return fmt.Errorf("attacker: %w", err)
	}
	if err := s.defender.Validate(cat); err != nil {
		return fmt.Errorf("defender: %w", err)
	}
	return nil
}

func (s *Session) rng(worker int) *rand.Rand {
	if s.seeded {
		return rand.New(rand.NewPCG(s.seed, uint64(worker)+1))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Run fights the configured number of trials and merges the results.
//
// Cancel or a done ctx stops the run at the next trial boundary; the trials
// finished so far are returned with Cancelled set and no error. Trials that
// fail are dropped; calcerr.ErrSimulationFailed is returned only when no
// trial succeeded.
func (s *Session) Run(ctx context.Context) (*results.Aggregate, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, calcerr.ErrBusy
	}
	if s.request == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: configure the session first", calcerr.ErrNotReady)
	}
	if s.policiesDirty {
		for _, w := range s.workers {
			if err := w.setPolicies(*s.attacker, *s.defender); err != nil {
				s.mu.Unlock()
				return nil, err
			}
		}
		s.policiesDirty = false
	}
	s.running = true
	workers := s.workers
	trials := s.request.Trials
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.runs++
		s.cancelled.Store(false)
		s.mu.Unlock()
	}()

	s.logger.Info("odds calculation started", "trials", trials, "workers", len(workers))
	start := time.Now()

	share := shares(trials, len(workers))
	partial := make([]*results.Aggregate, len(workers))
	failures := make([]error, len(workers))

	g, gctx := errgroup.WithContext(ctx)
	for i, w := range workers {
		partial[i] = &results.Aggregate{}
		g.Go(func() error {
			agg := partial[i]
			for n := 0; n < share[i]; n++ {
				if s.cancelled.Load() || gctx.Err() != nil {
					agg.Cancelled = true
					return nil
				}
				res, err := w.trial(s.engine)
				if rbErr := w.rollback(); rbErr != nil {
					return rbErr
				}
				if errors.Is(err, calcerr.ErrConfiguration) {
					return err
				}
				if err != nil {
					agg.AddDropped()
					failures[i] = err
					s.logger.Debug("trial dropped", "worker", w.id, "error", err)
					continue
				}
				agg.Add(res)
			}
			return nil
		})
	}
	err := g.Wait()

	total := &results.Aggregate{}
	for _, p := range partial {
		total = total.Merge(p)
	}
	total.Elapsed = time.Since(start)

	if err != nil {
		s.logger.Error("odds calculation aborted", "error", err)
		if errors.Is(err, calcerr.ErrConfiguration) {
			return total, err
		}
		return total, fmt.Errorf("%w: %w", calcerr.ErrConfiguration, err)
	}
	if total.Trials == 0 && total.Dropped > 0 && !total.Cancelled {
		var last error
		for _, f := range failures {
			if f != nil {
				last = f
			}
		}
		return total, fmt.Errorf("%w: %w", calcerr.ErrSimulationFailed, last)
	}

	s.logger.Info("odds calculation finished",
		"trials", total.Trials,
		"dropped", total.Dropped,
		"cancelled", total.Cancelled,
		"elapsed", total.Elapsed)
	return total, nil
}

// ConfigureAndRun is Configure followed by Run.
func (s *Session) ConfigureAndRun(ctx context.Context, req Request) (*results.Aggregate, error) {
	if err := s.Configure(req); err != nil {
		return nil, err
	}
	return s.Run(ctx)
}

// Cancel stops the current run at the next trial boundary. A cancel issued
// while idle stops the next run before its first trial.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Shutdown cancels any run and releases the worker snapshots.
func (s *Session) Shutdown() {
	s.Cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.request = nil
	s.workers = nil
}

// AttackerPolicy returns a copy of the attacker's policy.
func (s *Session) AttackerPolicy() (policy.Policy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attacker == nil {
		return policy.Policy{}, false
	}
	return *s.attacker, true
}

// DefenderPolicy returns a copy of the defender's policy.
func (s *Session) DefenderPolicy() (policy.Policy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.defender == nil {
		return policy.Policy{}, false
	}
	return *s.defender, true
}

// TrialCount returns the configured number of trials, or zero.
func (s *Session) TrialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.request == nil {
		return 0
	}
	return s.request.Trials
}

// WorkerCount returns the maximum number of parallel workers.
func (s *Session) WorkerCount() int { return s.workerCount }

// IsReady reports whether Run can be called.
func (s *Session) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request != nil
}

// IsRunning reports whether a run is in progress.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunCount returns the number of runs that have finished.
func (s *Session) RunCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}
