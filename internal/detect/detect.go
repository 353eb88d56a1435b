// Package detect probes the machine for agent CLIs and records what it
// finds as agent detection status.
package detect

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/enso/internal/logging"
	"github.com/soyeahso/enso/internal/settings"
)

// DefaultTimeout bounds each version probe.
const DefaultTimeout = 5 * time.Second

// Commands maps built-in agent ids to the executable they launch.
var Commands = map[string]string{
	"claude":   "claude",
	"codex":    "codex",
	"droid":    "droid",
	"gemini":   "gemini",
	"auggie":   "auggie",
	"cursor":   "cursor-agent",
	"opencode": "opencode",
}

// Runner abstracts process lookup and execution.
type Runner interface {
	LookPath(file string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs real processes.
type ExecRunner struct{}

func (ExecRunner) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Target is one agent to probe.
type Target struct {
	ID      string
	Command string
}

// Targets lists every built-in and custom agent in the snapshot with the
// command that launches it. A custom path configured for an agent wins
// over its default command.
func Targets(s settings.Snapshot) []Target {
	var out []Target
	seen := map[string]bool{}
	add := func(id, command string) {
		if seen[id] || command == "" {
			return
		}
		seen[id] = true
		if p := strings.TrimSpace(s.AgentSettings[id].CustomPath); p != "" {
			command = p
		}
		out = append(out, Target{ID: id, Command: command})
	}
	for _, id := range settings.BuiltinAgentIDs {
		add(id, Commands[id])
	}
	for _, a := range s.CustomAgents {
		add(a.ID, strings.TrimSpace(a.Command))
	}
	return out
}

// Recorder stores detection results. *store.Store satisfies it.
type Recorder interface {
	SetAgentDetectionStatus(id string, info settings.AgentDetectionInfo) error
}

// Option configures a Detector.
type Option func(*Detector)

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.timeout = d
		}
	}
}

// WithGOOS overrides the operating system, which decides whether the WSL
// fallback is tried.
func WithGOOS(goos string) Option {
	return func(det *Detector) { det.goos = goos }
}

// WithConcurrency bounds how many agents are probed at once.
func WithConcurrency(n int) Option {
	return func(det *Detector) {
		if n > 0 {
			det.workers = n
		}
	}
}

// Detector probes agent CLIs.
type Detector struct {
	runner  Runner
	log     *logging.Logger
	timeout time.Duration
	goos    string
	workers int
	now     func() time.Time
}

// New creates a detector. A nil runner runs real processes.
func New(runner Runner, log *logging.Logger, opts ...Option) *Detector {
	if runner == nil {
		runner = ExecRunner{}
	}
	d := &Detector{
		runner:  runner,
		log:     log.Sub("detect"),
		timeout: DefaultTimeout,
		goos:    runtime.GOOS,
		workers: 4,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect probes a single agent. A command found on PATH counts as
// installed even when its version cannot be read.
func (d *Detector) Detect(ctx context.Context, t Target) settings.AgentDetectionInfo {
	info := settings.AgentDetectionInfo{DetectedAt: d.now().UnixMilli()}

	if path, err := d.runner.LookPath(t.Command); err == nil {
		info.Installed = true
		info.Path = path
		info.Version = d.version(ctx, path, "--version")
		d.log.Debug().Str("agent", t.ID).Str("path", path).Str("version", info.Version).Msg("agent found")
		return info
	}

	if d.goos == "windows" {
		if path, ok := d.lookWSL(ctx, t.Command); ok {
			info.Installed = true
			info.IsWSL = true
			info.Path = path
			info.Version = d.version(ctx, "wsl.exe", "-e", "sh", "-lc", shellQuote(t.Command)+" --version")
			d.log.Debug().Str("agent", t.ID).Str("path", path).Msg("agent found in wsl")
			return info
		}
	}

	d.log.Debug().Str("agent", t.ID).Str("command", t.Command).Msg("agent not found")
	return info
}

// DetectAll probes every target concurrently and returns results keyed by
// agent id.
func (d *Detector) DetectAll(ctx context.Context, targets []Target) map[string]settings.AgentDetectionInfo {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, d.workers)
		out = make(map[string]settings.AgentDetectionInfo, len(targets))
	)
	for _, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			info := d.Detect(ctx, t)
			mu.Lock()
			out[t.ID] = info
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// Refresh probes every agent in the snapshot and records each result.
// Recording errors are logged and the remaining agents are still stored.
func (d *Detector) Refresh(ctx context.Context, snap settings.Snapshot, rec Recorder) map[string]settings.AgentDetectionInfo {
	start := time.Now()
	targets := Targets(snap)
	results := d.DetectAll(ctx, targets)

	installed := 0
	for _, t := range targets {
		info := results[t.ID]
		if info.Installed {
			installed++
		}
		if err := rec.SetAgentDetectionStatus(t.ID, info); err != nil {
			d.log.Warn().Err(err).Str("agent", t.ID).Msg("recording detection status failed")
		}
	}

	d.log.Info().
		Int("agents", len(results)).
		Int("installed", installed).
		Dur("duration", time.Since(start)).
		Msg("agent detection finished")
	return results
}

func (d *Detector) lookWSL(ctx context.Context, command string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.runner.Output(ctx, "wsl.exe", "-e", "sh", "-lc", "command -v "+shellQuote(command))
	if err != nil {
		return "", false
	}
	path := strings.TrimSpace(firstLine(string(out)))
	return path, path != ""
}

func (d *Detector) version(ctx context.Context, name string, args ...string) string {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.runner.Output(ctx, name, args...)
	if err != nil {
		d.log.Debug().Err(err).Str("cmd", name).Msg("version probe failed")
		return ""
	}
	return ParseVersion(string(out))
}

var (
	semverRe  = regexp.MustCompile(`\bv?(\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?)`)
	partialRe = regexp.MustCompile(`\bv?(\d+\.\d+)\b`)
)

// ParseVersion extracts the first semantic version from CLI output, e.g.
// "1.0.3 (Claude Code)" yields "1.0.3". A bare major.minor is accepted
// when no full version is present.
func ParseVersion(out string) string {
	if m := semverRe.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	if m := partialRe.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// shellQuote quotes s for a POSIX shell.
func shellQuote(s string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(s, "'", `'\''`))
}
