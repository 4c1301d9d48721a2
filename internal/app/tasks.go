package app

import (
	"io"
	"os"
	"runtime"

	"github.com/randomizedcoder/go-build-tasks/internal/logging"
	"github.com/randomizedcoder/go-build-tasks/internal/task"
)

// Task names used for shell hooks. Script hooks are named after the script.
const (
	StartTaskName = "build-start"
	EndTaskName   = "build-end"
)

// sessionTasks are the tasks of one session. Any of them may be nil.
type sessionTasks struct {
	start task.Task
	build task.Task
	end   task.Task
}

// capturedOutput holds the line handlers of one task's output streams.
type capturedOutput struct {
	name   string
	stdout *logging.OutputHandler
	stderr *logging.OutputHandler
}

// recent returns the last n lines across both streams, stdout first.
func (c capturedOutput) recent(n int) []string {
	lines := c.stdout.RecentLines(n)
	return append(lines, c.stderr.RecentLines(n)...)
}

// errorCounts merges the error-pattern counts of both streams.
func (c capturedOutput) errorCounts() map[string]int {
	counts := c.stdout.CountErrors()
	for p, n := range c.stderr.CountErrors() {
		counts[p] += n
	}
	return counts
}

func (a *App) buildTasks(stop task.StopConfig) sessionTasks {
	var t sessionTasks

	switch {
	case a.cfg.StartScript != "":
		t.start = a.scriptTask(a.cfg.StartScript, stop)
	case a.cfg.StartCmd != "":
		t.start = a.shellTask(StartTaskName, a.cfg.StartCmd, stop)
	}

	switch {
	case a.cfg.EndScript != "":
		t.end = a.scriptTask(a.cfg.EndScript, stop)
	case a.cfg.EndCmd != "":
		t.end = a.shellTask(EndTaskName, a.cfg.EndCmd, stop)
	}

	if a.cfg.HasBuild() {
		name := a.cfg.BuildName
		stdout, stderr := a.streams(name)
		t.build = task.NewProcessTask(name, task.ProcessOptions{
			Command:  a.cfg.BuildCommand[0],
			Args:     a.cfg.BuildCommand[1:],
			Dir:      a.dir,
			Stdout:   stdout,
			Stderr:   stderr,
			Stop:     stop,
			OnSignal: a.signalObserver(name),
			Spawner:  a.spawner,
			Logger:   a.logger,
		})
	}

	return t
}

func (a *App) shellTask(name, command string, stop task.StopConfig) task.Task {
	stdout, stderr := a.streams(name)
	return task.NewProcessTask(name, task.ProcessOptions{
		Command:  command,
		Shell:    true,
		Dir:      a.dir,
		Stdout:   stdout,
		Stderr:   stderr,
		Stop:     stop,
		OnSignal: a.signalObserver(name),
		Spawner:  a.spawner,
		Logger:   a.logger,
	})
}

func (a *App) scriptTask(script string, stop task.StopConfig) task.Task {
	stdout, stderr := a.streams(script)
	return task.NewPackageScriptTask(script, task.ScriptOptions{
		Script:   script,
		Dir:      a.dir,
		Stdout:   stdout,
		Stderr:   stderr,
		Stop:     stop,
		OnSignal: a.signalObserver(script),
		Spawner:  a.spawner,
		Logger:   a.logger,
	})
}

// capturing reports whether task output goes through line handlers instead
// of straight to the terminal. The dashboard owns the terminal, so it
// always captures.
func (a *App) capturing() bool {
	return a.cfg.CaptureOutput || a.cfg.TUIEnabled
}

// streams returns the stdout and stderr writers for a task.
func (a *App) streams(name string) (io.Writer, io.Writer) {
	if !a.capturing() {
		return a.childStdout, a.childStderr
	}
	c := capturedOutput{
		name:   name,
		stdout: logging.NewOutputHandler(name, "stdout", a.logger),
		stderr: logging.NewOutputHandler(name, "stderr", a.logger),
	}
	a.outputs = append(a.outputs, c)
	return c.stdout, c.stderr
}

// flushOutputs emits pending partial lines of the named task, or of every
// task when name is empty.
func (a *App) flushOutputs(name string) {
	for _, c := range a.outputs {
		if name == "" || c.name == name {
			c.stdout.Flush()
			c.stderr.Flush()
		}
	}
}

// outputErrors collects error-pattern counts of every captured task.
func (a *App) outputErrors() map[string]map[string]int {
	if len(a.outputs) == 0 {
		return nil
	}
	out := make(map[string]map[string]int)
	for _, c := range a.outputs {
		counts := out[c.name]
		if counts == nil {
			counts = make(map[string]int)
			out[c.name] = counts
		}
		for p, n := range c.errorCounts() {
			counts[p] += n
		}
	}
	return out
}

func (a *App) signalObserver(name string) func(os.Signal, bool) {
	return func(sig os.Signal, escalated bool) {
		a.collector.RecordSignal(name, sig, escalated)
	}
}

// shellBinary is the interpreter used for -start-cmd and -end-cmd.
func shellBinary() string {
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return "/bin/sh"
}
