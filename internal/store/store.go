// Package store owns the process-wide application state: settings, the
// current session, history, and the transient timer fields. Every
// mutation runs as one atomic transition over the snapshot, is persisted
// best-effort, and is published to subscribers.
package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/lockstep/internal/auth"
	"github.com/sadopc/lockstep/internal/history"
	"github.com/sadopc/lockstep/internal/session"
)

// Persister is the durable home of the snapshot document. Failures are
// logged and swallowed; the in-memory snapshot stays authoritative.
type Persister interface {
	Load() ([]byte, error)
	Save(doc []byte) error
}

// Store serializes all mutations behind a single lock: one writer per
// operation, no partial states observable.
type Store struct {
	mu      sync.Mutex
	log     zerolog.Logger
	persist Persister
	snap    Snapshot
	subs    []func(Snapshot)

	now func() time.Time
}

// New loads the persisted snapshot (falling back to defaults on any load
// failure), reconciles elapsed time against the clock, and returns a
// ready store.
func New(p Persister, log zerolog.Logger) *Store {
	s := &Store{
		log:     log,
		persist: p,
		snap:    defaultSnapshot(),
		now:     time.Now,
	}

	doc, err := p.Load()
	if err != nil {
		log.Warn().Err(err).Msg("load snapshot failed, starting fresh")
		return s
	}
	if doc == nil {
		return s
	}
	snap, err := decodeSnapshot(doc)
	if err != nil {
		log.Warn().Err(err).Msg("snapshot corrupt, starting fresh")
		return s
	}
	s.snap = Reconcile(snap, s.now())
	return s
}

// Subscribe registers an observer called with the new snapshot after
// every mutation.
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// saveLocked persists the snapshot, logging and swallowing failures.
func (s *Store) saveLocked() {
	doc, err := encodeSnapshot(s.snap)
	if err != nil {
		s.log.Warn().Err(err).Msg("encode snapshot failed")
		return
	}
	if err := s.persist.Save(doc); err != nil {
		s.log.Warn().Err(err).Msg("persist snapshot failed")
	}
}

func (s *Store) notifyLocked() {
	snap := s.snap
	for _, fn := range s.subs {
		fn(snap)
	}
}

func (s *Store) commitLocked() {
	s.saveLocked()
	s.notifyLocked()
}

// ensureSessionLocked lazily creates an idle session for today, so task
// edits always have a home.
func (s *Store) ensureSessionLocked() *session.Session {
	if s.snap.CurrentSession == nil {
		s.snap.CurrentSession = session.New(s.now())
	}
	return s.snap.CurrentSession
}

// ------------------------------------------------------------
// Settings operations
// ------------------------------------------------------------

// UpdateSettings applies an arbitrary settings mutation and persists.
func (s *Store) UpdateSettings(mutate func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.snap.Settings)
	s.commitLocked()
}

// SetPassword hashes and stores a new password. Validation errors leave
// the settings untouched.
func (s *Store) SetPassword(password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	s.UpdateSettings(func(cfg *Settings) { cfg.PasswordHash = hash })
	return nil
}

// VerifyPassword checks a plaintext candidate against the stored hash.
func (s *Store) VerifyPassword(candidate string) bool {
	s.mu.Lock()
	hash := s.snap.Settings.PasswordHash
	s.mu.Unlock()
	return auth.VerifyPassword(candidate, hash)
}

func (s *Store) SetVisualMode(mode VisualMode) {
	s.UpdateSettings(func(cfg *Settings) { cfg.VisualMode = mode })
}

func (s *Store) CompleteOnboarding() {
	s.UpdateSettings(func(cfg *Settings) { cfg.OnboardingCompleted = true })
}

func (s *Store) AddQuote(text, author string) {
	s.UpdateSettings(func(cfg *Settings) {
		cfg.Quotes = append(cfg.Quotes, NewQuote(text, author))
	})
}

func (s *Store) RemoveQuote(id string) {
	s.UpdateSettings(func(cfg *Settings) {
		quotes := cfg.Quotes[:0]
		for _, q := range cfg.Quotes {
			if q.ID != id {
				quotes = append(quotes, q)
			}
		}
		cfg.Quotes = quotes
	})
}

// ------------------------------------------------------------
// Task operations
// ------------------------------------------------------------

func (s *Store) AddTask(name string, durationHours float64, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ensureSessionLocked().AddTask(name, durationHours, notes); err != nil {
		return err
	}
	s.commitLocked()
	return nil
}

func (s *Store) UpdateTask(id string, patch session.TaskPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.CurrentSession == nil {
		return false, nil
	}
	applied, err := s.snap.CurrentSession.UpdateTask(id, patch)
	if err != nil || !applied {
		return applied, err
	}
	s.commitLocked()
	return true, nil
}

func (s *Store) RemoveTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.CurrentSession == nil || !s.snap.CurrentSession.RemoveTask(id) {
		return false
	}
	s.commitLocked()
	return true
}

func (s *Store) ReorderTasks(from, to int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.CurrentSession == nil || !s.snap.CurrentSession.Reorder(from, to) {
		return false
	}
	s.commitLocked()
	return true
}

// ------------------------------------------------------------
// Session lifecycle
// ------------------------------------------------------------

// CreateSession replaces the current session with a fresh idle one for
// today.
func (s *Store) CreateSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.CurrentSession = session.New(s.now())
	s.snap.TimerActive = false
	s.snap.ElapsedMs = 0
	s.snap.LastTick = nil
	s.commitLocked()
}

// StartSession arms the timer and activates the first task. A no-op when
// preconditions fail.
func (s *Store) StartSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.snap.CurrentSession == nil || !s.snap.CurrentSession.Start(now) {
		return false
	}
	s.snap.TimerActive = true
	s.snap.ElapsedMs = 0
	s.snap.LastTick = &now
	s.commitLocked()
	return true
}

// CompleteCurrentTask finishes the active task, crediting it with the
// elapsed time accumulated so far.
func (s *Store) CompleteCurrentTask(early bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := s.completeCurrentLocked(s.now(), early)
	if applied {
		s.commitLocked()
	}
	return applied
}

func (s *Store) completeCurrentLocked(now time.Time, early bool) bool {
	sess := s.snap.CurrentSession
	if sess == nil {
		return false
	}
	done, applied := sess.CompleteCurrent(now, s.snap.ElapsedMs, early)
	if !applied {
		return false
	}
	if done {
		// Fold the finished session into history and discard the live
		// reference; the next task list starts from a clean slate.
		s.snap.History = history.Record(s.snap.History, sess)
		s.snap.CurrentSession = nil
		s.snap.TimerActive = false
		s.snap.ElapsedMs = 0
		s.snap.LastTick = nil
		return true
	}
	s.snap.ElapsedMs = 0
	s.snap.LastTick = &now
	return true
}

// Tick advances elapsed time by the wall-clock delta since the previous
// tick. Ticks measure real time, so delayed or coalesced ticks still
// yield correct totals. When the active task's budget is exhausted the
// task auto-completes with early=false. Saves are throttled to once per
// whole elapsed second; notification happens every tick.
func (s *Store) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.snap.TimerActive || s.snap.LastTick == nil {
		return
	}
	sess := s.snap.CurrentSession
	if sess == nil || sess.State != session.StateRunning {
		return
	}
	cur := sess.CurrentTask()
	if cur == nil {
		return
	}

	delta := now.Sub(*s.snap.LastTick).Milliseconds()
	if delta < 0 {
		delta = 0
	}
	newElapsed := s.snap.ElapsedMs + delta

	if newElapsed >= cur.BudgetMs() {
		// Budget exhausted: credit the full budget and advance without
		// user action.
		s.snap.ElapsedMs = cur.BudgetMs()
		if s.completeCurrentLocked(now, false) {
			s.commitLocked()
		}
		return
	}

	prevSeconds := s.snap.ElapsedMs / 1000
	s.snap.ElapsedMs = newElapsed
	tick := now
	s.snap.LastTick = &tick

	if newElapsed/1000 != prevSeconds {
		s.saveLocked()
	}
	s.notifyLocked()
}

// ------------------------------------------------------------
// Extensions and pauses
// ------------------------------------------------------------

// AddExtension grants extra minutes to the active task. Elapsed time is
// untouched; the countdown simply has further to run.
func (s *Store) AddExtension(minutes int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.CurrentSession == nil {
		return false
	}
	if _, applied := s.snap.CurrentSession.ExtendCurrent(minutes, s.now()); !applied {
		return false
	}
	s.commitLocked()
	return true
}

// EmergencyPause freezes the countdown and logs a pause event. Elapsed
// time keeps its current value.
func (s *Store) EmergencyPause(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.CurrentSession == nil || !s.snap.CurrentSession.Pause(s.now(), reason) {
		return false
	}
	s.snap.TimerActive = false
	s.snap.LastTick = nil
	s.commitLocked()
	return true
}

// ResumeFromPause re-arms the timer; accumulation restarts from the
// frozen elapsed value.
func (s *Store) ResumeFromPause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.snap.CurrentSession == nil || !s.snap.CurrentSession.Resume(now) {
		return false
	}
	s.snap.TimerActive = true
	s.snap.LastTick = &now
	s.commitLocked()
	return true
}

// ------------------------------------------------------------
// Import / export / reset
// ------------------------------------------------------------

// Export serializes the full snapshot as an indented JSON document.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return encodeSnapshot(s.snap)
}

// Import replaces the entire snapshot from a document. All-or-nothing: a
// parse failure or missing settings object leaves existing state
// untouched. Missing settings fields take defaults.
func (s *Store) Import(doc []byte) bool {
	snap, err := decodeSnapshot(doc)
	if err != nil {
		s.log.Warn().Err(err).Msg("import rejected")
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Reconcile(snap, s.now())
	s.commitLocked()
	return true
}

// Reset discards all state and returns to defaults.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = defaultSnapshot()
	s.commitLocked()
}
