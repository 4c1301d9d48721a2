//go:build !windows

package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-build-tasks/internal/config"
	"github.com/randomizedcoder/go-build-tasks/internal/process"
)

// =============================================================================
// Test Helpers
// =============================================================================

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testOutputs struct {
	stdout      syncBuffer
	stderr      syncBuffer
	childStdout syncBuffer
	childStderr syncBuffer
}

// recordingSpawner records every spec before spawning it for real.
type recordingSpawner struct {
	inner process.Spawner

	mu    sync.Mutex
	specs []process.Spec
}

func (r *recordingSpawner) Spawn(spec process.Spec) (process.Handle, error) {
	r.mu.Lock()
	r.specs = append(r.specs, spec)
	r.mu.Unlock()
	return r.inner.Spawn(spec)
}

func (r *recordingSpawner) Specs() []process.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Spec(nil), r.specs...)
}

func testConfig(t *testing.T, build ...string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Dir = t.TempDir()
	cfg.BuildCommand = build
	cfg.SkipPreflight = true
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *testOutputs) {
	t.Helper()
	return newTestAppWithSpawner(t, cfg, nil)
}

func newTestAppWithSpawner(t *testing.T, cfg *config.Config, sp process.Spawner) (*App, *testOutputs) {
	t.Helper()
	out := &testOutputs{}
	a, err := New(cfg, Options{
		Spawner:     sp,
		Version:     "test",
		Logger:      slog.New(slog.DiscardHandler),
		Stdout:      &out.stdout,
		Stderr:      &out.stderr,
		ChildStdout: &out.childStdout,
		ChildStderr: &out.childStderr,
		Registry:    prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRun_SingleCycleSucceeds(t *testing.T) {
	a, out := newTestApp(t, testConfig(t, "/bin/sh", "-c", "echo hello"))

	if code := a.Run(context.Background()); code != ExitOK {
		t.Fatalf("Run() = %d, want %d", code, ExitOK)
	}

	if got := out.childStdout.String(); got != "hello\n" {
		t.Errorf("child stdout = %q, want %q", got, "hello\n")
	}
	printed := out.stdout.String()
	for _, want := range []string{"[build] Starting...", "[build] Finished after"} {
		if !strings.Contains(printed, want) {
			t.Errorf("stdout missing %q:\n%s", want, printed)
		}
	}
	if strings.Contains(printed, "Exit Summary") {
		t.Error("summary printed for a plain single run")
	}

	snap := a.recorder.Snapshot()
	if snap.Cycles != 1 || snap.FailedCycles != 0 {
		t.Errorf("cycles = %d failed = %d, want 1 and 0", snap.Cycles, snap.FailedCycles)
	}
}

func TestRun_BuildFailure(t *testing.T) {
	a, out := newTestApp(t, testConfig(t, "/bin/sh", "-c", "exit 3"))

	if code := a.Run(context.Background()); code != ExitFailed {
		t.Fatalf("Run() = %d, want %d", code, ExitFailed)
	}

	printed := out.stdout.String()
	if !strings.Contains(printed, "[build] Failed after") {
		t.Errorf("stdout missing failure line:\n%s", printed)
	}
	if !strings.Contains(printed, "process exited with code 3") {
		t.Errorf("stdout missing exit code detail:\n%s", printed)
	}
}

func TestRun_HooksRunInOrder(t *testing.T) {
	cfg := testConfig(t, "/bin/sh", "-c", "echo build")
	cfg.StartCmd = "echo start"
	cfg.EndCmd = "echo end"
	a, out := newTestApp(t, cfg)

	if code := a.Run(context.Background()); code != ExitOK {
		t.Fatalf("Run() = %d, want %d", code, ExitOK)
	}

	if got, want := out.childStdout.String(), "start\nbuild\nend\n"; got != want {
		t.Errorf("child stdout = %q, want %q", got, want)
	}

	names := make([]string, 0, 3)
	for _, ts := range a.recorder.Snapshot().Tasks {
		names = append(names, ts.Name)
	}
	want := []string{StartTaskName, "build", EndTaskName}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("recorded tasks = %v, want %v", names, want)
	}
}

func TestRun_TasksDoNotInheritStdin(t *testing.T) {
	cfg := testConfig(t, "/bin/sh", "-c", "cat")
	cfg.StartCmd = "true"
	sp := &recordingSpawner{inner: process.NewExecSpawner(nil)}
	a, _ := newTestAppWithSpawner(t, cfg, sp)

	if code := a.Run(context.Background()); code != ExitOK {
		t.Fatalf("Run() = %d, want %d", code, ExitOK)
	}

	specs := sp.Specs()
	if len(specs) != 2 {
		t.Fatalf("spawned %d processes, want 2", len(specs))
	}
	for _, spec := range specs {
		if spec.Stdin != nil {
			t.Errorf("%s: Stdin = %v, want nil", spec.Command, spec.Stdin)
		}
	}
}

func TestRun_HooksWithoutBuild(t *testing.T) {
	cfg := testConfig(t)
	cfg.StartCmd = "echo start"
	cfg.EndCmd = "echo end"
	a, out := newTestApp(t, cfg)

	if code := a.Run(context.Background()); code != ExitOK {
		t.Fatalf("Run() = %d, want %d", code, ExitOK)
	}
	if got, want := out.childStdout.String(), "start\nend\n"; got != want {
		t.Errorf("child stdout = %q, want %q", got, want)
	}
}

func TestRun_CapturedOutputReplayedOnFailure(t *testing.T) {
	cfg := testConfig(t, "/bin/sh", "-c", "echo compiling; echo oops >&2; exit 1")
	cfg.CaptureOutput = true
	a, out := newTestApp(t, cfg)

	if code := a.Run(context.Background()); code != ExitFailed {
		t.Fatalf("Run() = %d, want %d", code, ExitFailed)
	}

	if got := out.childStdout.String(); got != "" {
		t.Errorf("captured output leaked to child stdout: %q", got)
	}
	printed := out.stdout.String()
	for _, want := range []string{"[build] | compiling", "[build] | oops"} {
		if !strings.Contains(printed, want) {
			t.Errorf("stdout missing %q:\n%s", want, printed)
		}
	}
}

func TestRun_SummaryCountsOutputErrors(t *testing.T) {
	cfg := testConfig(t, "/bin/sh", "-c", "echo 'npm ERR! missing script' >&2; echo 'npm ERR! code 1' >&2; exit 1")
	cfg.CaptureOutput = true
	cfg.Verbose = true
	a, out := newTestApp(t, cfg)

	if code := a.Run(context.Background()); code != ExitFailed {
		t.Fatalf("Run() = %d, want %d", code, ExitFailed)
	}

	printed := out.stdout.String()
	i := strings.Index(printed, "Output Errors")
	if i < 0 {
		t.Fatalf("summary missing output errors:\n%s", printed)
	}
	line := ""
	for _, l := range strings.Split(printed[i:], "\n") {
		if strings.Contains(l, "npm ERR!") {
			line = l
			break
		}
	}
	if !strings.Contains(line, "build") || !strings.HasSuffix(strings.TrimSpace(line), " 2") {
		t.Errorf("npm ERR! line = %q, want build counted twice", line)
	}
}

func TestRun_CapturedOutputQuietOnSuccess(t *testing.T) {
	cfg := testConfig(t, "/bin/sh", "-c", "echo compiling")
	cfg.CaptureOutput = true
	a, out := newTestApp(t, cfg)

	if code := a.Run(context.Background()); code != ExitOK {
		t.Fatalf("Run() = %d, want %d", code, ExitOK)
	}
	if strings.Contains(out.stdout.String(), "compiling") {
		t.Errorf("output of a successful task replayed:\n%s", out.stdout.String())
	}
}

func TestRun_WritesMetricsFile(t *testing.T) {
	cfg := testConfig(t, "/bin/sh", "-c", "true")
	cfg.MetricsFile = filepath.Join(t.TempDir(), "build.prom")
	a, _ := newTestApp(t, cfg)

	if code := a.Run(context.Background()); code != ExitOK {
		t.Fatalf("Run() = %d, want %d", code, ExitOK)
	}

	data, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`build_tasks_task_runs_total{outcome="success",task="build",type="process"} 1`,
		`build_tasks_cycles_total{result="succeeded"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics file missing %q:\n%s", want, text)
		}
	}
}

func TestRun_PreflightFailure(t *testing.T) {
	cfg := testConfig(t, "go-build-tasks-no-such-binary")
	cfg.SkipPreflight = false
	a, out := newTestApp(t, cfg)

	if code := a.Run(context.Background()); code != ExitFailed {
		t.Fatalf("Run() = %d, want %d", code, ExitFailed)
	}
	if !strings.Contains(out.stderr.String(), "binary:go-build-tasks-no-such-binary") {
		t.Errorf("stderr missing binary check:\n%s", out.stderr.String())
	}
	if snap := a.recorder.Snapshot(); snap.Cycles != 0 {
		t.Errorf("cycles = %d after failed preflight, want 0", snap.Cycles)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	a, out := newTestApp(t, testConfig(t, "/bin/sh", "-c", "echo hello"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if code := a.Run(ctx); code != ExitInterrupted {
		t.Fatalf("Run() = %d, want %d", code, ExitInterrupted)
	}
	if got := out.childStdout.String(); got != "" {
		t.Errorf("build ran after cancellation: %q", got)
	}
}

func TestRun_InterruptStopsBuild(t *testing.T) {
	cfg := testConfig(t, "/bin/sh", "-c", "echo ready; sleep 30")
	cfg.StopTimeout = 0
	a, out := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- a.Run(ctx) }()

	waitFor(t, "build to start", func() bool {
		return strings.Contains(out.childStdout.String(), "ready")
	})
	cancel()

	select {
	case code := <-done:
		if code != ExitInterrupted {
			t.Errorf("Run() = %d, want %d", code, ExitInterrupted)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	snap := a.recorder.Snapshot()
	if len(snap.Tasks) != 1 || snap.Tasks[0].Cancelled != 1 {
		t.Errorf("tasks = %+v, want one cancelled build", snap.Tasks)
	}
}

func TestRun_ForceStopAfterGracefulStop(t *testing.T) {
	cfg := testConfig(t, "/bin/sh", "-c", "trap '' INT; echo ready; sleep 30")
	cfg.StopTimeout = -1
	a, out := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- a.Run(ctx) }()

	waitFor(t, "build to start", func() bool {
		return strings.Contains(out.childStdout.String(), "ready")
	})
	cancel()

	// SIGINT is ignored and the stop never escalates on its own.
	select {
	case code := <-done:
		t.Fatalf("Run() = %d before the forced stop", code)
	case <-time.After(300 * time.Millisecond):
	}

	a.ForceStop()
	select {
	case code := <-done:
		if code != ExitInterrupted {
			t.Errorf("Run() = %d, want %d", code, ExitInterrupted)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after ForceStop")
	}
}

func TestRun_WatchRebuilds(t *testing.T) {
	cfg := testConfig(t, "/bin/sh", "-c", "echo built")
	cfg.Watch = true
	cfg.RebuildInterval = 0
	a, out := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- a.Run(ctx) }()

	cycles := func(n int) func() bool {
		return func() bool { return a.recorder.Snapshot().Cycles >= n }
	}
	waitFor(t, "first cycle", cycles(1))

	if !a.Rebuild() {
		t.Error("Rebuild() = false, want true while watching")
	}
	waitFor(t, "second cycle", cycles(2))

	cancel()
	select {
	case code := <-done:
		if code != ExitInterrupted {
			t.Errorf("Run() = %d, want %d", code, ExitInterrupted)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if got := strings.Count(out.childStdout.String(), "built\n"); got != 2 {
		t.Errorf("build ran %d times, want 2", got)
	}
	if !strings.Contains(out.stdout.String(), "Exit Summary") {
		t.Error("watch session did not print the exit summary")
	}
}

// =============================================================================
// Control Tests
// =============================================================================

func TestRebuild_NotWatching(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t, "/bin/sh", "-c", "true"))

	if a.Rebuild() {
		t.Error("Rebuild() = true outside watch mode")
	}
	if a.rebuildHook() != nil {
		t.Error("rebuildHook() != nil outside watch mode")
	}
}

func TestStatus(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t, "/bin/sh", "-c", "exit 1"))
	a.Run(context.Background())

	st, ok := a.Status().(Status)
	if !ok {
		t.Fatalf("Status() type = %T, want Status", a.Status())
	}
	if st.Busy || st.InFlight != 0 {
		t.Errorf("Busy = %v InFlight = %d after run", st.Busy, st.InFlight)
	}
	if st.Cycles != 1 || st.Failed != 1 {
		t.Errorf("Cycles = %d Failed = %d, want 1 and 1", st.Cycles, st.Failed)
	}
	if st.Watch {
		t.Error("Watch = true")
	}
}

func TestPreflightOptions(t *testing.T) {
	cfg := testConfig(t, "esbuild", "--bundle")
	cfg.StartScript = "prebuild"
	cfg.EndCmd = "echo done"
	a, _ := newTestApp(t, cfg)

	opts := a.preflightOptions()
	if got := strings.Join(opts.Binaries, ","); got != "esbuild,/bin/sh" {
		t.Errorf("Binaries = %q, want %q", got, "esbuild,/bin/sh")
	}
	if got := strings.Join(opts.Scripts, ","); got != "prebuild" {
		t.Errorf("Scripts = %q, want %q", got, "prebuild")
	}
	if opts.Dir != a.dir {
		t.Errorf("Dir = %q, want %q", opts.Dir, a.dir)
	}
}
