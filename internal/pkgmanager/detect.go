// Package pkgmanager detects which JavaScript package manager a project
// uses and reads scripts from its package.json manifest.
package pkgmanager

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// Manager is a package-manager command name.
type Manager string

const (
	NPM  Manager = "npm"
	Yarn Manager = "yarn"
	PNPM Manager = "pnpm"
	Bun  Manager = "bun"
)

// ErrNoPackageManager is returned when no package manager can be found.
var ErrNoPackageManager = errors.New("no package manager detected")

// Detector resolves the package manager for a project directory.
type Detector interface {
	Detect(ctx context.Context, dir string) (Manager, error)
}

// lockFiles are checked in order; the first one present wins.
var lockFiles = []struct {
	file    string
	manager Manager
}{
	{"yarn.lock", Yarn},
	{"package-lock.json", NPM},
	{"pnpm-lock.yaml", PNPM},
	{"bun.lockb", Bun},
	{"bun.lock", Bun},
}

// globalOrder is the fallback order when the project has no lockfile and
// no packageManager field.
var globalOrder = []Manager{Yarn, PNPM, Bun, NPM}

// ProjectDetector inspects lockfiles and the manifest, then falls back to
// globally installed managers.
type ProjectDetector struct {
	// LookPath reports whether a binary is installed. Defaults to
	// exec.LookPath.
	LookPath func(file string) (string, error)
}

// NewProjectDetector creates a detector using exec.LookPath.
func NewProjectDetector() *ProjectDetector {
	return &ProjectDetector{LookPath: exec.LookPath}
}

// Detect returns the package manager for dir. An empty dir means the
// current directory.
func (d *ProjectDetector) Detect(ctx context.Context, dir string) (Manager, error) {
	if dir == "" {
		dir = "."
	}

	for _, lf := range lockFiles {
		if _, err := os.Stat(filepath.Join(dir, lf.file)); err == nil {
			return lf.manager, nil
		}
	}

	if m, ok := manifestManager(dir); ok {
		return m, nil
	}

	lookPath := d.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, m := range globalOrder {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if _, err := lookPath(string(m)); err == nil {
			return m, nil
		}
	}

	return "", ErrNoPackageManager
}

// manifestManager reads the corepack "packageManager" field, for example
// "pnpm@9.1.0".
func manifestManager(dir string) (Manager, bool) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return "", false
	}

	field := gjson.GetBytes(data, "packageManager")
	if !field.Exists() {
		return "", false
	}

	name, _, _ := strings.Cut(field.String(), "@")
	switch m := Manager(strings.TrimSpace(name)); m {
	case NPM, Yarn, PNPM, Bun:
		return m, true
	}
	return "", false
}
