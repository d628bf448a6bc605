// Package shell turns a resolved shell specification into an
// interactive session with the resolved tools on PATH.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/shellforge/shellforge/pkg/platform"
	"github.com/shellforge/shellforge/pkg/resolver"
)

// fallbackShell is used when $SHELL is unset.
const fallbackShell = "/bin/sh"

// Launcher builds interactive sessions from resolved specs.
type Launcher struct {
	logger zerolog.Logger

	// lookupEnv and current are swapped in tests.
	lookupEnv func(string) (string, bool)
	current   func() platform.Platform
}

// NewLauncher creates a shell launcher.
func NewLauncher(logger zerolog.Logger) *Launcher {
	return &Launcher{
		logger:    logger.With().Str("component", "shell").Logger(),
		lookupEnv: os.LookupEnv,
		current:   platform.Current,
	}
}

// Session is a prepared interactive shell. Start launches it; the
// embedded command is wired to the caller's terminal.
type Session struct {
	// Shell is the shell binary that will run.
	Shell string

	// Env is the full environment of the session.
	Env []string

	// Path is the PATH value assembled from the resolved tools.
	Path string

	cmd    *exec.Cmd
	logger zerolog.Logger
}

// MkShell prepares an interactive session for a resolved spec. The spec
// must have been resolved for the machine's own platform.
func (l *Launcher) MkShell(spec *resolver.ShellSpec) (*Session, error) {
	if spec == nil {
		return nil, fmt.Errorf("no shell specification")
	}

	current := l.current()
	if spec.Platform != current {
		return nil, fmt.Errorf("spec is resolved for %s, this machine is %s", spec.Platform, current)
	}

	shellBin, ok := l.lookupEnv("SHELL")
	if !ok || shellBin == "" {
		shellBin = fallbackShell
	}

	env, path := l.environment(spec)

	cmd := exec.Command(shellBin)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	l.logger.Debug().
		Str("shell", shellBin).
		Str("platform", string(spec.Platform)).
		Int("tools", len(spec.Tools)).
		Msg("Prepared interactive session")

	return &Session{
		Shell:  shellBin,
		Env:    env,
		Path:   path,
		cmd:    cmd,
		logger: l.logger,
	}, nil
}

// environment merges the process environment with the spec's tools and
// extra variables. Tool bin directories are prepended to PATH in
// request order so earlier build inputs shadow later ones.
func (l *Launcher) environment(spec *resolver.ShellSpec) ([]string, string) {
	basePath := ""
	if v, ok := l.lookupEnv("PATH"); ok {
		basePath = v
	}

	segments := make([]string, 0, len(spec.Tools)+1)
	for _, tool := range spec.Tools {
		segments = append(segments, tool.StorePath+"/bin")
	}
	if basePath != "" {
		segments = append(segments, basePath)
	}
	path := strings.Join(segments, string(os.PathListSeparator))

	overrides := map[string]string{
		"PATH":                path,
		"SHELLFORGE_PLATFORM": string(spec.Platform),
		"SHELLFORGE_REVISION": spec.Revision,
	}
	for k, v := range spec.Env {
		overrides[k] = v
	}

	env := make([]string, 0, len(os.Environ())+len(overrides))
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if _, shadowed := overrides[key]; shadowed {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}

	return env, path
}

// Start launches the session. The context cancels the shell when done.
func (s *Session) Start(ctx context.Context) error {
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}

	s.logger.Info().
		Str("shell", s.Shell).
		Int("pid", s.cmd.Process.Pid).
		Msg("Shell session started")

	go func() {
		<-ctx.Done()
		if s.cmd.Process != nil {
			_ = s.Signal(syscall.SIGTERM)
		}
	}()

	return nil
}

// Wait blocks until the shell exits. A non-zero exit status is not an
// error; the user simply left the shell that way.
func (s *Session) Wait() (int, error) {
	err := s.cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("shell session failed: %w", err)
}

// Signal forwards a signal to the shell process.
func (s *Session) Signal(sig os.Signal) error {
	if s.cmd.Process == nil {
		return fmt.Errorf("session not started")
	}
	return s.cmd.Process.Signal(sig)
}
