// Package convert drives the external image and audio converters.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"
)

// ErrToolMissing is returned when a converter executable cannot be found.
// It aborts the export.
var ErrToolMissing = errors.New("external tool not found")

// ErrBadTemplate is returned for an empty or unparsable command template.
var ErrBadTemplate = errors.New("bad command template")

// Runner runs one external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands as child processes. A non-zero exit status is
// logged, not returned: callers check for the output file instead.
type ExecRunner struct {
	Log *zap.Logger
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrToolMissing, name)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		log.Warn("converter failed",
			zap.String("tool", name),
			zap.Int("exit", exitErr.ExitCode()),
			zap.String("output", tail(string(out), 512)))
	case err != nil:
		return fmt.Errorf("run %s: %w", name, err)
	default:
		log.Debug("converter done", zap.String("tool", name), zap.Strings("args", args))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

// Expand splits a command template into words and substitutes {name}
// placeholders. Words that expand to nothing are dropped, so optional
// flags can be left empty.
func Expand(tmpl string, vars map[string]string) ([]string, error) {
	words, err := shellwords.Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadTemplate, tmpl, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadTemplate)
	}

	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	rep := strings.NewReplacer(pairs...)

	out := words[:0]
	for _, w := range words {
		if w = rep.Replace(w); w != "" {
			out = append(out, w)
		}
	}
	return out, nil
}
