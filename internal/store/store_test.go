package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/lockstep/internal/auth"
	"github.com/sadopc/lockstep/internal/session"
)

var t0 = time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

// memPersister is an in-memory Persister that counts saves and can be
// made to fail.
type memPersister struct {
	doc      []byte
	saves    int
	failSave bool
	failLoad bool
}

func (m *memPersister) Load() ([]byte, error) {
	if m.failLoad {
		return nil, errors.New("load failed")
	}
	return m.doc, nil
}

func (m *memPersister) Save(doc []byte) error {
	if m.failSave {
		return errors.New("save failed")
	}
	m.saves++
	m.doc = append([]byte(nil), doc...)
	return nil
}

// newTestStore returns a store with a controllable clock. Advance time by
// mutating *clock.
func newTestStore(t *testing.T) (*Store, *memPersister, *time.Time) {
	t.Helper()
	p := &memPersister{}
	s := New(p, zerolog.Nop())
	clock := t0
	s.now = func() time.Time { return clock }
	return s, p, &clock
}

// ============================================================
// Construction and defaults
// ============================================================

func TestNewDefaults(t *testing.T) {
	s, _, _ := newTestStore(t)
	snap := s.Snapshot()
	if snap.CurrentSession != nil {
		t.Fatal("fresh store should have no session")
	}
	if snap.Settings.ExtensionThresholdPercent != 10 || snap.Settings.LongPressSeconds != 5 {
		t.Fatalf("unexpected default settings: %+v", snap.Settings)
	}
	if snap.Settings.VisualMode != VisualStandard {
		t.Fatalf("visual mode = %q", snap.Settings.VisualMode)
	}
	if len(snap.Settings.Quotes) == 0 {
		t.Fatal("default quotes missing")
	}
}

func TestNewSurvivesLoadFailure(t *testing.T) {
	p := &memPersister{failLoad: true}
	s := New(p, zerolog.Nop())
	if s.Snapshot().Settings.ExtensionThresholdPercent != 10 {
		t.Fatal("load failure should fall back to defaults")
	}
}

func TestNewSurvivesCorruptSnapshot(t *testing.T) {
	p := &memPersister{doc: []byte("{not json")}
	s := New(p, zerolog.Nop())
	if s.Snapshot().CurrentSession != nil {
		t.Fatal("corrupt snapshot should fall back to defaults")
	}
}

// ============================================================
// Task operations
// ============================================================

func TestAddTaskCreatesSession(t *testing.T) {
	s, _, _ := newTestStore(t)
	if err := s.AddTask("Write report", 1.5, ""); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if snap.CurrentSession == nil {
		t.Fatal("session should be created lazily")
	}
	if snap.CurrentSession.State != session.StateIdle {
		t.Fatalf("state = %q", snap.CurrentSession.State)
	}
	if snap.CurrentSession.TotalPlannedMs != 5_400_000 {
		t.Fatalf("planned = %d", snap.CurrentSession.TotalPlannedMs)
	}
}

func TestAddTaskValidationError(t *testing.T) {
	s, p, _ := newTestStore(t)
	if err := s.AddTask("", 1, ""); err == nil {
		t.Fatal("expected validation error")
	}
	if p.saves != 0 {
		t.Fatal("failed validation must not persist")
	}
}

func TestTaskEditOpsWithoutSession(t *testing.T) {
	s, _, _ := newTestStore(t)
	if applied, _ := s.UpdateTask("x", session.TaskPatch{}); applied {
		t.Fatal("update without session should be a no-op")
	}
	if s.RemoveTask("x") {
		t.Fatal("remove without session should be a no-op")
	}
	if s.ReorderTasks(0, 1) {
		t.Fatal("reorder without session should be a no-op")
	}
}

// ============================================================
// Session lifecycle: full two-task run
// ============================================================

func TestFullSessionScenario(t *testing.T) {
	s, _, clock := newTestStore(t)

	// Create session, add Task A (1.0h) and Task B (0.5h).
	s.AddTask("Task A", 1.0, "")
	s.AddTask("Task B", 0.5, "")
	snap := s.Snapshot()
	if snap.CurrentSession.TotalPlannedMs != 5_400_000 {
		t.Fatalf("planned = %d", snap.CurrentSession.TotalPlannedMs)
	}

	// Start: Task A active at index 0.
	if !s.StartSession() {
		t.Fatal("start failed")
	}
	snap = s.Snapshot()
	if !snap.TimerActive || snap.ElapsedMs != 0 {
		t.Fatal("timer should be armed with zero elapsed")
	}
	if snap.CurrentSession.CurrentTaskIndex != 0 ||
		snap.CurrentSession.Tasks[0].Status != session.StatusActive {
		t.Fatal("task A should be active")
	}

	// Tick past Task A's full hour: auto-completes, Task B activates.
	*clock = t0.Add(time.Hour)
	s.Tick(*clock)
	snap = s.Snapshot()
	sess := snap.CurrentSession
	if sess.Tasks[0].Status != session.StatusCompleted {
		t.Fatal("task A should have auto-completed")
	}
	if sess.Tasks[0].CompletedEarly {
		t.Fatal("timer exhaustion is not an early completion")
	}
	if sess.Tasks[0].TimeSpentMs != 3_600_000 {
		t.Fatalf("task A timeSpent = %d", sess.Tasks[0].TimeSpentMs)
	}
	if sess.CurrentTaskIndex != 1 || sess.Tasks[1].Status != session.StatusActive {
		t.Fatal("task B should be active")
	}
	if sess.TotalActualMs != 3_600_000 {
		t.Fatalf("actual = %d", sess.TotalActualMs)
	}
	if snap.ElapsedMs != 0 {
		t.Fatal("elapsed should reset for the new task")
	}

	// Work 100s into Task B, then complete early.
	*clock = clock.Add(100 * time.Second)
	s.Tick(*clock)
	if !s.CompleteCurrentTask(true) {
		t.Fatal("complete failed")
	}

	snap = s.Snapshot()
	if snap.CurrentSession != nil {
		t.Fatal("completed session should be cleared from the store")
	}
	if snap.TimerActive {
		t.Fatal("timer should be disarmed")
	}
	if len(snap.History) != 1 {
		t.Fatalf("history = %d", len(snap.History))
	}
	day := snap.History[0]
	if day.TasksPlanned != 2 || day.TasksCompleted != 2 {
		t.Fatalf("summary tasks: planned=%d completed=%d", day.TasksPlanned, day.TasksCompleted)
	}
	if day.ActualTimeMs != 3_700_000 {
		t.Fatalf("summary actual = %d", day.ActualTimeMs)
	}
	if len(day.Sessions) != 1 || day.Sessions[0].State != session.StateCompleted {
		t.Fatal("completed session snapshot should be in the summary")
	}
}

func TestStartPreconditions(t *testing.T) {
	s, _, _ := newTestStore(t)
	if s.StartSession() {
		t.Fatal("start without a session should be a no-op")
	}
	s.CreateSession()
	if s.StartSession() {
		t.Fatal("start with zero tasks should be a no-op")
	}
	if s.Snapshot().CurrentSession.State != session.StateIdle {
		t.Fatal("state should stay idle")
	}
}

func TestCompleteWithoutActiveTask(t *testing.T) {
	s, _, _ := newTestStore(t)
	if s.CompleteCurrentTask(false) {
		t.Fatal("complete without a running session should be a no-op")
	}
	s.AddTask("Task A", 1.0, "")
	if s.CompleteCurrentTask(false) {
		t.Fatal("complete while idle should be a no-op")
	}
}

// ============================================================
// Tick behavior
// ============================================================

func TestTickAccumulatesRealDelta(t *testing.T) {
	s, _, clock := newTestStore(t)
	s.AddTask("Task A", 1.0, "")
	s.StartSession()

	// Irregular, coalesced ticks: only wall-clock time matters.
	*clock = t0.Add(250 * time.Millisecond)
	s.Tick(*clock)
	*clock = t0.Add(4 * time.Second)
	s.Tick(*clock)

	if got := s.Snapshot().ElapsedMs; got != 4000 {
		t.Fatalf("elapsed = %d, want 4000", got)
	}
}

func TestTickNoopWhenNotRunning(t *testing.T) {
	s, _, clock := newTestStore(t)
	s.AddTask("Task A", 1.0, "")
	s.Tick(t0.Add(time.Second))
	if s.Snapshot().ElapsedMs != 0 {
		t.Fatal("tick while idle should be a no-op")
	}

	s.StartSession()
	s.EmergencyPause("")
	*clock = t0.Add(time.Minute)
	s.Tick(*clock)
	if s.Snapshot().ElapsedMs != 0 {
		t.Fatal("tick while paused should be a no-op")
	}
}

func TestTickThrottlesSaves(t *testing.T) {
	s, p, clock := newTestStore(t)
	s.AddTask("Task A", 1.0, "")
	s.StartSession()
	base := p.saves

	// Sub-second ticks within the same elapsed second: no saves.
	for i := 1; i <= 3; i++ {
		*clock = t0.Add(time.Duration(i) * 200 * time.Millisecond)
		s.Tick(*clock)
	}
	if p.saves != base {
		t.Fatalf("sub-second ticks should not save, got %d extra", p.saves-base)
	}

	// Crossing a whole-second boundary saves once.
	*clock = t0.Add(1100 * time.Millisecond)
	s.Tick(*clock)
	if p.saves != base+1 {
		t.Fatalf("expected one save after second boundary, got %d", p.saves-base)
	}

	// In-memory elapsed keeps sub-second precision regardless.
	if got := s.Snapshot().ElapsedMs; got != 1100 {
		t.Fatalf("elapsed = %d", got)
	}
}

func TestTickAutoCompleteCreditsBudgetExactly(t *testing.T) {
	s, _, clock := newTestStore(t)
	s.AddTask("Task A", 0.5, "")
	s.AddTask("Task B", 0.5, "")
	s.StartSession()

	// Overshoot the budget by 10 minutes; the task is credited its
	// budget, not the overshoot.
	*clock = t0.Add(40 * time.Minute)
	s.Tick(*clock)

	sess := s.Snapshot().CurrentSession
	if sess.Tasks[0].TimeSpentMs != 1_800_000 {
		t.Fatalf("timeSpent = %d, want exactly the budget", sess.Tasks[0].TimeSpentMs)
	}
}

// ============================================================
// Extensions
// ============================================================

func TestAddExtensionExtendsCountdown(t *testing.T) {
	s, _, clock := newTestStore(t)
	s.AddTask("Task A", 1.0, "")
	s.StartSession()

	*clock = t0.Add(50 * time.Minute)
	s.Tick(*clock)

	if !s.AddExtension(30) {
		t.Fatal("extension should apply while running")
	}
	snap := s.Snapshot()
	if snap.ElapsedMs != 50*60*1000 {
		t.Fatal("extension must not reset elapsed time")
	}
	if snap.RemainingMs() != 40*60*1000 {
		t.Fatalf("remaining = %d, want 40min", snap.RemainingMs())
	}
	if snap.CurrentSession.TotalPlannedMs != 5_400_000 {
		t.Fatalf("planned = %d", snap.CurrentSession.TotalPlannedMs)
	}
}

func TestAddExtensionPreconditions(t *testing.T) {
	s, _, _ := newTestStore(t)
	if s.AddExtension(30) {
		t.Fatal("extension without session should be a no-op")
	}
	s.AddTask("Task A", 1.0, "")
	if s.AddExtension(30) {
		t.Fatal("extension while idle should be a no-op")
	}
}

func TestOfferExtensionsThreshold(t *testing.T) {
	s, _, clock := newTestStore(t)
	s.AddTask("Task A", 1.0, "")
	s.StartSession()

	if s.Snapshot().OfferExtensions() {
		t.Fatal("full budget remaining should not offer")
	}

	// 10% of 1h = 6min remaining.
	*clock = t0.Add(54 * time.Minute)
	s.Tick(*clock)
	if !s.Snapshot().OfferExtensions() {
		t.Fatal("at the base threshold the offer should appear")
	}

	// One extension halves the bar to 5%: 93.75min budget, need <=4.6875min.
	s.AddExtension(30)
	if s.Snapshot().OfferExtensions() {
		t.Fatal("threshold should halve after an extension")
	}
	*clock = clock.Add(32 * time.Minute) // 86min elapsed of 90min budget
	s.Tick(*clock)
	if !s.Snapshot().OfferExtensions() {
		t.Fatal("deep into the extended budget the offer should reappear")
	}
}

// ============================================================
// Pause / resume
// ============================================================

func TestPauseFreezesElapsed(t *testing.T) {
	s, _, clock := newTestStore(t)
	s.AddTask("Task A", 1.0, "")
	s.StartSession()

	*clock = t0.Add(10 * time.Minute)
	s.Tick(*clock)

	if !s.EmergencyPause("doorbell") {
		t.Fatal("pause should apply")
	}
	frozen := s.Snapshot().ElapsedMs

	// Time passes while paused; elapsed must not move.
	*clock = clock.Add(20 * time.Minute)
	s.Tick(*clock)
	if s.Snapshot().ElapsedMs != frozen {
		t.Fatal("elapsed advanced while paused")
	}

	if !s.ResumeFromPause() {
		t.Fatal("resume should apply")
	}
	// Accumulation restarts from the frozen value.
	*clock = clock.Add(5 * time.Minute)
	s.Tick(*clock)
	if got := s.Snapshot().ElapsedMs; got != frozen+5*60*1000 {
		t.Fatalf("elapsed = %d, want %d", got, frozen+5*60*1000)
	}

	ev := s.Snapshot().CurrentSession.PauseEvents[0]
	if ev.ResumedAt == nil || ev.ResumedAt.Before(ev.PausedAt) {
		t.Fatalf("pause event not closed properly: %+v", ev)
	}
}

func TestPauseResumePreconditions(t *testing.T) {
	s, _, _ := newTestStore(t)
	if s.EmergencyPause("") || s.ResumeFromPause() {
		t.Fatal("pause/resume without a session should be no-ops")
	}
	s.AddTask("Task A", 1.0, "")
	if s.EmergencyPause("") {
		t.Fatal("pause while idle should be a no-op")
	}
	s.StartSession()
	if s.ResumeFromPause() {
		t.Fatal("resume while running should be a no-op")
	}
}

// ============================================================
// Settings and password
// ============================================================

func TestSetAndVerifyPassword(t *testing.T) {
	s, _, _ := newTestStore(t)
	if err := s.SetPassword("abc"); err != auth.ErrPasswordTooShort {
		t.Fatalf("short password: %v", err)
	}
	if err := s.SetPassword("focus123"); err != nil {
		t.Fatal(err)
	}
	if !s.VerifyPassword("focus123") {
		t.Fatal("correct password should verify")
	}
	if s.VerifyPassword("wrong") {
		t.Fatal("wrong password should not verify")
	}
	if strings.Contains(s.Snapshot().Settings.PasswordHash, "focus123") {
		t.Fatal("plaintext leaked into the hash")
	}
}

func TestQuoteManagement(t *testing.T) {
	s, _, _ := newTestStore(t)
	before := len(s.Snapshot().Settings.Quotes)

	s.AddQuote("Ship it.", "anon")
	quotes := s.Snapshot().Settings.Quotes
	if len(quotes) != before+1 {
		t.Fatalf("quotes = %d", len(quotes))
	}
	added := quotes[len(quotes)-1]
	if added.Text != "Ship it." || added.ID == "" || added.IsDefault {
		t.Fatalf("unexpected quote: %+v", added)
	}

	s.RemoveQuote(added.ID)
	if len(s.Snapshot().Settings.Quotes) != before {
		t.Fatal("quote not removed")
	}
}

func TestCompleteOnboarding(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.CompleteOnboarding()
	if !s.Snapshot().Settings.OnboardingCompleted {
		t.Fatal("onboarding flag not set")
	}
}

// ============================================================
// Subscription and persistence failure
// ============================================================

func TestSubscribersNotified(t *testing.T) {
	s, _, _ := newTestStore(t)
	var got []Snapshot
	s.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	s.AddTask("Task A", 1.0, "")
	if len(got) != 1 {
		t.Fatalf("notifications = %d", len(got))
	}
	if got[0].CurrentSession == nil {
		t.Fatal("subscriber should see the new snapshot")
	}
}

func TestSaveFailureIsSwallowed(t *testing.T) {
	s, p, _ := newTestStore(t)
	p.failSave = true

	if err := s.AddTask("Task A", 1.0, ""); err != nil {
		t.Fatalf("save failure must not surface: %v", err)
	}
	// In-memory state stays authoritative.
	if s.Snapshot().CurrentSession == nil {
		t.Fatal("state should survive persistence failure")
	}
}

// ============================================================
// Export / import
// ============================================================

func TestExportImportRoundTrip(t *testing.T) {
	s, _, clock := newTestStore(t)
	s.SetPassword("focus123")
	s.AddTask("Task A", 1.0, "notes")
	s.StartSession()
	*clock = t0.Add(5 * time.Second)
	s.Tick(*clock)

	doc, err := s.Export()
	if err != nil {
		t.Fatal(err)
	}

	s2, _, _ := newTestStore(t)
	if !s2.Import(doc) {
		t.Fatal("import of exported document should succeed")
	}
	snap := s2.Snapshot()
	if snap.CurrentSession == nil || snap.CurrentSession.Tasks[0].Name != "Task A" {
		t.Fatal("session not reproduced")
	}
	if snap.Settings.PasswordHash != s.Snapshot().Settings.PasswordHash {
		t.Fatal("settings not reproduced")
	}
	if !s2.VerifyPassword("focus123") {
		t.Fatal("password should survive the round trip")
	}
}

func TestImportRejectsMalformed(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.AddTask("Task A", 1.0, "")

	if s.Import([]byte("{broken")) {
		t.Fatal("malformed document should be rejected")
	}
	if s.Import([]byte(`{"history": []}`)) {
		t.Fatal("document without settings should be rejected")
	}
	if s.Import([]byte(`{"settings": null}`)) {
		t.Fatal("null settings should be rejected")
	}
	// Existing state untouched.
	if s.Snapshot().CurrentSession == nil {
		t.Fatal("rejected import must not clear state")
	}
}

func TestImportAppliesSettingsDefaults(t *testing.T) {
	s, _, _ := newTestStore(t)
	if !s.Import([]byte(`{"settings": {"visual_mode": "calm"}}`)) {
		t.Fatal("minimal import should succeed")
	}
	cfg := s.Snapshot().Settings
	if cfg.VisualMode != VisualCalm {
		t.Fatalf("visual mode = %q", cfg.VisualMode)
	}
	// Absent fields default per DefaultSettings.
	if cfg.ExtensionThresholdPercent != 10 || cfg.LongPressSeconds != 5 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if len(cfg.Quotes) == 0 {
		t.Fatal("default quotes not applied")
	}
}

func TestReset(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.AddTask("Task A", 1.0, "")
	s.SetPassword("focus123")
	s.Reset()

	snap := s.Snapshot()
	if snap.CurrentSession != nil || snap.Settings.PasswordHash != "" {
		t.Fatal("reset should restore defaults")
	}
}

// ============================================================
// Load reconciliation
// ============================================================

func TestReconcileRecomputesElapsed(t *testing.T) {
	s, p, clock := newTestStore(t)
	s.AddTask("Task A", 2.0, "")
	s.StartSession()
	*clock = t0.Add(time.Second)
	s.Tick(*clock)

	// Simulate a restart 30 minutes later: the persisted elapsed value is
	// stale, the active task's startedAt is the truth.
	persisted, err := decodeSnapshot(p.doc)
	if err != nil {
		t.Fatal(err)
	}
	later := t0.Add(30 * time.Minute)
	snap := Reconcile(persisted, later)

	want := later.Sub(t0).Milliseconds()
	if snap.ElapsedMs != want {
		t.Fatalf("elapsed = %d, want %d", snap.ElapsedMs, want)
	}
	if !snap.TimerActive || snap.LastTick == nil {
		t.Fatal("running session should come back armed")
	}
}

func TestReconcileRejectsClockSkew(t *testing.T) {
	s, p, clock := newTestStore(t)
	s.AddTask("Task A", 2.0, "")
	s.StartSession()
	*clock = t0.Add(5 * time.Second)
	s.Tick(*clock)
	want := s.Snapshot().ElapsedMs

	// Clock moved backwards across the restart.
	persisted, err := decodeSnapshot(p.doc)
	if err != nil {
		t.Fatal(err)
	}
	snap := Reconcile(persisted, t0.Add(-time.Hour))
	if snap.ElapsedMs != want {
		t.Fatalf("skewed clock should keep persisted elapsed, got %d", snap.ElapsedMs)
	}
}

func TestReconcileIdleSession(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.AddTask("Task A", 1.0, "")
	snap := Reconcile(s.Snapshot(), t0.Add(time.Hour))
	if snap.TimerActive || snap.LastTick != nil {
		t.Fatal("idle session should not arm the timer")
	}
}
