// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/randomizedcoder/go-build-tasks/internal/pkgmanager"
)

// minFileDescriptors leaves room for a handful of children, their pipes and
// the metrics listener.
const minFileDescriptors = 64

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
	Fix      string // Suggested remedy when the check fails
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// Options selects what RunAll verifies.
type Options struct {
	// Dir is the project directory holding package.json.
	Dir string

	// Binaries must resolve on PATH.
	Binaries []string

	// Scripts must be declared in package.json. A package manager must also
	// be detectable and installed when any are given.
	Scripts []string

	// Detector resolves the package manager. Defaults to a ProjectDetector.
	Detector pkgmanager.Detector

	// LookPath resolves binaries. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, opts Options) *Result {
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	if opts.Detector == nil {
		opts.Detector = &pkgmanager.ProjectDetector{LookPath: opts.LookPath}
	}

	result := &Result{
		Checks: make([]Check, 0, len(opts.Binaries)+len(opts.Scripts)+2),
		Passed: true,
	}
	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkFileDescriptors())

	seen := make(map[string]bool)
	for _, bin := range opts.Binaries {
		if bin == "" || seen[bin] {
			continue
		}
		seen[bin] = true
		add(checkBinary(opts.Dir, bin, opts.LookPath))
	}

	if len(opts.Scripts) > 0 {
		add(checkPackageManager(ctx, opts.Dir, opts.Detector, opts.LookPath))
		for _, script := range opts.Scripts {
			add(checkScript(opts.Dir, script))
		}
	}

	return result
}

// checkBinary verifies a command resolves on PATH. Relative paths such as
// ./build.sh are resolved against dir, where the command will run.
func checkBinary(dir, name string, lookPath func(string) (string, error)) Check {
	target := name
	if dir != "" && !filepath.IsAbs(name) && strings.ContainsAny(name, `/\`) {
		target = filepath.Join(dir, name)
	}
	path, err := lookPath(target)
	if err != nil {
		return Check{
			Name:    "binary:" + name,
			Passed:  false,
			Message: fmt.Sprintf("not found on PATH: %v", err),
			Fix:     fmt.Sprintf("install %s or use its absolute path", name),
		}
	}
	return Check{
		Name:    "binary:" + name,
		Passed:  true,
		Message: "found at " + path,
	}
}

// checkPackageManager verifies a package manager is detected and installed.
func checkPackageManager(ctx context.Context, dir string, d pkgmanager.Detector, lookPath func(string) (string, error)) Check {
	m, err := d.Detect(ctx, dir)
	if err != nil {
		return Check{
			Name:    "package_manager",
			Passed:  false,
			Message: err.Error(),
			Fix:     "install npm, yarn, pnpm or bun",
		}
	}
	path, err := lookPath(string(m))
	if err != nil {
		return Check{
			Name:    "package_manager",
			Passed:  false,
			Message: fmt.Sprintf("project uses %s but it is not on PATH", m),
			Fix:     fmt.Sprintf("install %s (corepack enable)", m),
		}
	}
	return Check{
		Name:    "package_manager",
		Passed:  true,
		Message: fmt.Sprintf("%s at %s", m, path),
	}
}

// checkScript verifies a script is declared in package.json.
func checkScript(dir, name string) Check {
	cmdline, ok, err := pkgmanager.Script(dir, name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Check{
			Name:    "script:" + name,
			Passed:  false,
			Message: pkgmanager.ManifestFile + " not found in " + dir,
			Fix:     "run from the project root or pass -dir",
		}
	case err != nil:
		return Check{
			Name:    "script:" + name,
			Passed:  false,
			Message: err.Error(),
			Fix:     "fix " + pkgmanager.ManifestFile,
		}
	case !ok:
		return Check{
			Name:    "script:" + name,
			Passed:  false,
			Message: "not declared in " + pkgmanager.ManifestFile,
			Fix:     fmt.Sprintf("add \"%s\" under \"scripts\"", name),
		}
	}
	return Check{
		Name:    "script:" + name,
		Passed:  true,
		Message: cmdline,
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed && check.Fix != "" {
			fmt.Fprintf(w, "    Fix: %s\n", check.Fix)
		}
	}
	fmt.Fprintln(w)
}
