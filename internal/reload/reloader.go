// Package reload invokes the haproxy reload mechanism as a subprocess.
//
// HAProxy performs a graceful handoff itself: started with -sf and the
// pid of the previous worker, the new process takes over the listening
// sockets and signals the old worker to finish in-flight connections and
// exit. All this package does is build that invocation, bound it with a
// timeout, and translate the exit status.
package reload

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	syncerrors "github.com/mir00r/haproxy-sync/internal/errors"
	"github.com/mir00r/haproxy-sync/pkg/logger"
)

// Reloader triggers the external load balancer to pick up the current
// configuration file. A nil return means the reload succeeded; a non-zero
// exit status is an expected, recoverable error, not a programming error.
type Reloader interface {
	Reload(ctx context.Context) error
}

// HAProxyReloader reloads by invoking the haproxy binary directly with
// -sf pointing at the previous worker's pid.
type HAProxyReloader struct {
	binaryPath string
	configPath string
	pidPath    string
	timeout    time.Duration
	logger     *logger.Logger
}

// NewHAProxyReloader builds a reloader around the given haproxy binary.
func NewHAProxyReloader(binaryPath, configPath, pidPath string, timeout time.Duration, log *logger.Logger) *HAProxyReloader {
	return &HAProxyReloader{
		binaryPath: binaryPath,
		configPath: configPath,
		pidPath:    pidPath,
		timeout:    timeout,
		logger:     log.ReloadLogger(),
	}
}

// Reload starts a new haproxy worker against the current configuration.
// When a previous pid is on record it is passed via -sf for a graceful
// handoff; on first start there is no old worker and -sf is omitted.
func (r *HAProxyReloader) Reload(ctx context.Context) error {
	args := []string{"-f", r.configPath, "-p", r.pidPath}

	if oldPid := readPidFile(r.pidPath); oldPid != "" {
		args = append(args, "-sf", oldPid)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binaryPath, args...)
	output, err := cmd.CombinedOutput()

	log := r.logger.WithField("command", r.binaryPath+" "+strings.Join(args, " "))
	if len(output) > 0 {
		log = log.WithField("output", strings.TrimSpace(string(output)))
	}

	if ctx.Err() == context.DeadlineExceeded {
		log.Error("Reload timed out")
		return syncerrors.NewReloadTimeoutError(r.timeout)
	}

	if err != nil {
		log.WithError(err).Error("Reload failed")
		return syncerrors.NewReloadFailedError(err)
	}

	log.Info("Reload succeeded")
	return nil
}

// ScriptReloader delegates the reload to an operator-supplied script,
// for setups where haproxy runs under a supervisor or in a separate
// container. The contract is exit code 0 = success.
type ScriptReloader struct {
	scriptPath string
	timeout    time.Duration
	logger     *logger.Logger
}

// NewScriptReloader builds a reloader around the given script.
func NewScriptReloader(scriptPath string, timeout time.Duration, log *logger.Logger) *ScriptReloader {
	return &ScriptReloader{
		scriptPath: scriptPath,
		timeout:    timeout,
		logger:     log.ReloadLogger(),
	}
}

// Reload runs the script and maps its exit status to the reload contract.
func (r *ScriptReloader) Reload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.scriptPath)
	output, err := cmd.CombinedOutput()

	log := r.logger.WithField("script", r.scriptPath)
	if len(output) > 0 {
		log = log.WithField("output", strings.TrimSpace(string(output)))
	}

	if ctx.Err() == context.DeadlineExceeded {
		log.Error("Reload script timed out")
		return syncerrors.NewReloadTimeoutError(r.timeout)
	}

	if err != nil {
		log.WithError(err).Error("Reload script failed")
		return syncerrors.NewReloadFailedError(err)
	}

	log.Info("Reload script succeeded")
	return nil
}

// readPidFile returns the trimmed contents of the pid file, or "" when
// the file is missing or empty. The pid is read in-process instead of
// shelling out to cat.
func readPidFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
