package supervisor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/muurk/remootio/internal/config"
	"github.com/muurk/remootio/internal/deviceconfig"
	"github.com/muurk/remootio/internal/remootio"
)

// Status is the runtime status of a config entry.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusRetrying   Status = "retrying"
	StatusSetupError Status = "setup_error"
)

// Setup results passed to Recorder.ObserveSetup.
const (
	resultConnected  = "connected"
	resultRetry      = "retry"
	resultSetupError = "setup_error"
)

// A session that lasts at least this long resets the reconnect backoff.
const defaultStableAfter = time.Minute

// ErrNotRunning is returned by Sync before Run was called.
var ErrNotRunning = errors.New("supervisor not running")

// EntryStatus is a snapshot of one supervised entry.
type EntryStatus struct {
	Serial         string    `json:"serial"`
	Status         Status    `json:"status"`
	State          string    `json:"state"`
	Attempts       int       `json:"attempts"`
	LastError      string    `json:"last_error,omitempty"`
	NextRetry      time.Time `json:"next_retry,omitempty"`
	ConnectedSince time.Time `json:"connected_since,omitempty"`
}

// Connector opens a verified session for an entry.
// *deviceconfig.Bootstrapper implements it.
type Connector interface {
	CreateClient(ctx context.Context, opts remootio.ConnectionOptions, expectedSerial string) (deviceconfig.DeviceClient, error)
}

// EntrySource lists the entries to supervise.
// *config.FileStore implements it.
type EntrySource interface {
	Entries() []config.Entry
	TouchEntry(serial string, seen time.Time) error
}

// Publisher receives state and availability updates.
// *mqtt.Publisher implements it.
type Publisher interface {
	PublishState(serial, deviceClass string, state remootio.State) error
	PublishAvailability(serial string, online bool) error
}

// Recorder receives metrics. *metrics.Metrics implements it.
type Recorder interface {
	SetConnected(serial string, connected bool)
	SetState(serial string, state remootio.State)
	ObserveSetup(serial, result string)
	Forget(serial string)
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublisher sets where state updates go.
func WithPublisher(p Publisher) Option {
	return func(s *Supervisor) {
		s.publisher = p
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Supervisor) {
		s.recorder = r
	}
}

// WithStableAfter sets how long a session must stay up before the reconnect
// delay starts over from the initial delay.
func WithStableAfter(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.stableAfter = d
		}
	}
}

// WithBackoff sets the initial and maximum delay between failed setups.
func WithBackoff(initial, max time.Duration) Option {
	return func(s *Supervisor) {
		if initial > 0 {
			s.initialDelay = initial
		}
		if max > 0 {
			s.maxDelay = max
		}
	}
}

type worker struct {
	cancel  context.CancelFunc
	done    chan struct{}
	updated time.Time // Entry.UpdatedAt the worker was started with
}

// Supervisor keeps one device session per config entry alive.
type Supervisor struct {
	connector    Connector
	store        EntrySource
	publisher    Publisher
	recorder     Recorder
	logger       *zap.Logger
	initialDelay time.Duration
	maxDelay     time.Duration
	stableAfter  time.Duration

	mu       sync.Mutex
	ctx      context.Context
	workers  map[string]*worker
	statuses map[string]*EntryStatus
}

// New creates a Supervisor for the entries in store.
func New(connector Connector, store EntrySource, opts ...Option) *Supervisor {
	s := &Supervisor{
		connector:    connector,
		store:        store,
		logger:       zap.NewNop(),
		initialDelay: time.Duration(config.DefaultRetryInitialDelay) * time.Second,
		maxDelay:     time.Duration(config.DefaultRetryMaxDelay) * time.Second,
		stableAfter:  defaultStableAfter,
		workers:      make(map[string]*worker),
		statuses:     make(map[string]*EntryStatus),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run supervises all entries until ctx is canceled, then closes every
// session and returns.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.Sync(); err != nil {
		return err
	}

	<-ctx.Done()

	s.mu.Lock()
	workers := make([]*worker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	for _, w := range workers {
		<-w.done
	}
	return nil
}

// Sync starts workers for new entries, restarts workers whose entry was
// updated and stops workers whose entry is gone.
func (s *Supervisor) Sync() error {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return ErrNotRunning
	}

	entries := s.store.Entries()
	want := make(map[string]bool, len(entries))
	for _, e := range entries {
		want[e.SerialNumber] = true
		s.mu.Lock()
		w, ok := s.workers[e.SerialNumber]
		s.mu.Unlock()
		if ok && !w.updated.Equal(e.UpdatedAt) {
			s.Stop(e.SerialNumber)
		}
		s.start(ctx, e)
	}

	s.mu.Lock()
	var stale []string
	for serial := range s.workers {
		if !want[serial] {
			stale = append(stale, serial)
		}
	}
	s.mu.Unlock()

	for _, serial := range stale {
		s.Stop(serial)
	}
	return nil
}

func (s *Supervisor) start(ctx context.Context, e config.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workers[e.SerialNumber]; ok {
		return
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &worker{cancel: cancel, done: make(chan struct{}), updated: e.UpdatedAt}
	s.workers[e.SerialNumber] = w
	s.statuses[e.SerialNumber] = &EntryStatus{
		Serial: e.SerialNumber,
		Status: StatusConnecting,
		State:  remootio.StateUnknown.String(),
	}

	go func() {
		defer close(w.done)
		s.run(wctx, e)
	}()
}

// Stop ends supervision of serial and waits for its session to close.
func (s *Supervisor) Stop(serial string) {
	s.mu.Lock()
	w, ok := s.workers[serial]
	if ok {
		delete(s.workers, serial)
		delete(s.statuses, serial)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	w.cancel()
	<-w.done
	if s.recorder != nil {
		s.recorder.Forget(serial)
	}
}

// Status returns the status of serial.
func (s *Supervisor) Status(serial string) (EntryStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[serial]
	if !ok {
		return EntryStatus{}, false
	}
	return *st, true
}

// Statuses returns a snapshot of all entries ordered by serial.
func (s *Supervisor) Statuses() []EntryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntryStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out
}

func (s *Supervisor) update(serial string, fn func(st *EntryStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses[serial]; ok {
		fn(st)
	}
}

func (s *Supervisor) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialDelay
	b.MaxInterval = s.maxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// run sets up the entry and reconnects whenever the session ends, until
// ctx is canceled or setup fails permanently.
func (s *Supervisor) run(ctx context.Context, e config.Entry) {
	serial := e.SerialNumber
	log := s.logger.With(zap.String("serial", serial), zap.String("host", e.Host))
	bo := s.newBackOff()

	for attempt := 1; ; attempt++ {
		s.update(serial, func(st *EntryStatus) {
			st.Status = StatusConnecting
			st.Attempts = attempt
			st.NextRetry = time.Time{}
		})

		client, err := s.connector.CreateClient(ctx, e.ConnectionOptions(), serial)
		if ctx.Err() != nil {
			if client != nil {
				client.Close()
			}
			return
		}

		if err != nil {
			if !deviceconfig.IsRetryable(err) {
				log.Error("Setup failed", zap.Error(err))
				s.observeSetup(serial, resultSetupError)
				s.update(serial, func(st *EntryStatus) {
					st.Status = StatusSetupError
					st.LastError = deviceconfig.GetShortErrorMessage(err)
				})
				return
			}

			log.Warn("Device not ready, retrying", zap.Error(err))
			s.observeSetup(serial, resultRetry)
			s.update(serial, func(st *EntryStatus) {
				st.Status = StatusRetrying
				st.LastError = deviceconfig.GetShortErrorMessage(err)
			})
			if !s.wait(ctx, log, serial, bo) {
				return
			}
			continue
		}

		s.observeSetup(serial, resultConnected)
		connectedAt := time.Now()
		s.serve(ctx, log, e, client)
		if ctx.Err() != nil {
			return
		}

		// A device that drops right after the handshake keeps backing off.
		if time.Since(connectedAt) >= s.stableAfter {
			bo.Reset()
		}
		s.update(serial, func(st *EntryStatus) { st.Status = StatusRetrying })
		if !s.wait(ctx, log, serial, bo) {
			return
		}
	}
}

// wait sleeps for the next backoff delay. It returns false if ctx was
// canceled first.
func (s *Supervisor) wait(ctx context.Context, log *zap.Logger, serial string, bo *backoff.ExponentialBackOff) bool {
	delay := bo.NextBackOff()
	if delay == backoff.Stop {
		delay = s.maxDelay
	}
	log.Debug("Reconnecting", zap.Duration("retry_in", delay))
	s.update(serial, func(st *EntryStatus) { st.NextRetry = time.Now().Add(delay) })

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// serve forwards state changes of a connected client until it drops or
// ctx is canceled.
func (s *Supervisor) serve(ctx context.Context, log *zap.Logger, e config.Entry, client deviceconfig.DeviceClient) {
	serial := e.SerialNumber
	defer client.Close()

	changed := make(chan struct{}, 1)
	client.OnStateChange(func(remootio.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	now := time.Now()
	if err := s.store.TouchEntry(serial, now); err != nil {
		log.Warn("Failed to record last seen", zap.Error(err))
	}

	state := client.State()
	log.Info("Device connected", zap.Stringer("state", state))
	s.update(serial, func(st *EntryStatus) {
		st.Status = StatusConnected
		st.State = state.String()
		st.LastError = ""
		st.ConnectedSince = now
	})
	s.setConnected(log, serial, true)
	s.publishState(log, e, state)

	for {
		select {
		case <-ctx.Done():
			s.setConnected(log, serial, false)
			return

		case <-client.Done():
			err := client.Err()
			log.Warn("Device connection lost", zap.Error(err))
			s.update(serial, func(st *EntryStatus) {
				st.Status = StatusConnecting
				st.ConnectedSince = time.Time{}
				if err != nil {
					st.LastError = err.Error()
				}
			})
			s.setConnected(log, serial, false)
			return

		case <-changed:
			next := client.State()
			if next == state {
				continue
			}
			state = next
			log.Info("State changed", zap.Stringer("state", state))
			s.update(serial, func(st *EntryStatus) { st.State = state.String() })
			s.publishState(log, e, state)
		}
	}
}

func (s *Supervisor) setConnected(log *zap.Logger, serial string, connected bool) {
	if s.recorder != nil {
		s.recorder.SetConnected(serial, connected)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishAvailability(serial, connected); err != nil {
			log.Warn("Failed to publish availability", zap.Error(err))
		}
	}
}

func (s *Supervisor) publishState(log *zap.Logger, e config.Entry, state remootio.State) {
	if s.recorder != nil {
		s.recorder.SetState(e.SerialNumber, state)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishState(e.SerialNumber, e.DeviceClass, state); err != nil {
			log.Warn("Failed to publish state", zap.Error(err))
		}
	}
}

func (s *Supervisor) observeSetup(serial, result string) {
	if s.recorder != nil {
		s.recorder.ObserveSetup(serial, result)
	}
}
