// Package runctx carries the per-invocation process state (working directory,
// environment, standard streams and exit code) that components would otherwise
// read from the process globals.
package runctx

import (
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ExitSink records the exit code the process should terminate with.
type ExitSink interface {
	SetExitCode(code int)
}

// RunContext is passed to every component instead of touching process-wide state.
type RunContext struct {
	WorkDir     string
	Environment []string
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	Exit        ExitSink
}

// FromProcess builds a RunContext for the real process rooted at workDir.
// An empty workDir means the current directory.
func FromProcess(workDir string) (*RunContext, error) {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		workDir = wd
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, err
	}
	return &RunContext{
		WorkDir:     abs,
		Environment: os.Environ(),
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Exit:        &ExitCode{},
	}, nil
}

// Resolve returns p joined to the working directory unless it is already absolute.
func (rc *RunContext) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rc.WorkDir, p)
}

// Rel returns p relative to the working directory, or p unchanged if that is not possible.
func (rc *RunContext) Rel(p string) string {
	rel, err := filepath.Rel(rc.WorkDir, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// SetExit records code on the exit sink if one is attached.
func (rc *RunContext) SetExit(code int) {
	if rc.Exit != nil {
		rc.Exit.SetExitCode(code)
	}
}

// ExitCode is an ExitSink that keeps the highest code it has been given.
type ExitCode struct {
	mu   sync.Mutex
	code int
}

// SetExitCode records code if it is higher than the current value.
func (e *ExitCode) SetExitCode(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if code > e.code {
		e.code = code
	}
}

// Code returns the recorded exit code.
func (e *ExitCode) Code() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.code
}
