// Package selfupdate implements C9: check/download/apply/restart against
// a configured orchestrator, matching spec.md §4.9's four-step protocol.
// Grounded on the teacher's atomic-file-swap idiom used by configstore's
// persistLocked (temp file + os.Rename) and its HTTP client conventions.
package selfupdate

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DimaJoyti/node-agent/pkg/errors"
	"github.com/DimaJoyti/node-agent/pkg/logger"
)

// HeartbeatCycleInterval is K from spec.md §4.9: every 25th heartbeat
// tick also triggers an update check.
const HeartbeatCycleInterval = 25

const (
	checkTimeout    = 10 * time.Second
	downloadTimeout = 120 * time.Second
)

// CheckResult mirrors the orchestrator's /agent/check response.
type CheckResult struct {
	NeedsUpdate   bool   `json:"needsUpdate"`
	CurrentHash   string `json:"currentHash,omitempty"`
	CurrentVersion string `json:"currentVersion,omitempty"`
}

// Updater performs the self-update protocol against one orchestrator URL
// for one executable path.
type Updater struct {
	serverURL string
	execPath  string
	authToken string
	http      *http.Client
	log       *logger.Logger
}

// New returns an Updater. An empty serverURL disables Check/Download
// entirely (Check returns needsUpdate=false without a network call).
func New(serverURL, execPath string, log *logger.Logger) *Updater {
	return &Updater{
		serverURL: serverURL,
		execPath:  execPath,
		http:      &http.Client{},
		log:       log,
	}
}

// Enabled reports whether an orchestrator URL is configured.
func (u *Updater) Enabled() bool {
	return u.serverURL != ""
}

// SetAuthToken configures an optional bearer token attached to the
// outbound /agent/check call (never required: the agent itself never
// authenticates inbound callers). The token is parsed unverified so a
// malformed value is rejected before it leaves the process, rather than
// silently sent and bounced by the orchestrator.
func (u *Updater) SetAuthToken(token string) error {
	if token == "" {
		u.authToken = ""
		return nil
	}
	if _, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{}); err != nil {
		return errors.WrapTyped(errors.UpdateCheckFailed, err, "malformed update auth token")
	}
	u.authToken = token
	return nil
}

// OwnHash computes the MD5 of the running executable on demand.
func (u *Updater) OwnHash() (string, error) {
	return fileMD5(u.execPath)
}

// Check performs step 1 of the protocol: GET /agent/check?hash=<own_hash>.
func (u *Updater) Check(ctx context.Context) (CheckResult, error) {
	if !u.Enabled() {
		return CheckResult{}, nil
	}

	ownHash, err := u.OwnHash()
	if err != nil {
		return CheckResult{}, errors.WrapTyped(errors.UpdateCheckFailed, err, "failed to hash own executable")
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.serverURL+"/agent/check?hash="+ownHash, nil)
	if err != nil {
		return CheckResult{}, errors.WrapTyped(errors.UpdateCheckFailed, err, "failed to build check request")
	}
	if u.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+u.authToken)
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return CheckResult{}, errors.WrapTyped(errors.UpdateCheckFailed, err, "update check request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CheckResult{}, errors.NewTyped(errors.UpdateCheckFailed, "orchestrator rejected update check")
	}

	var result CheckResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return CheckResult{}, errors.WrapTyped(errors.UpdateCheckFailed, err, "failed to decode check response")
	}
	return result, nil
}

// Download performs step 2: GET /agent/download, streamed to <path>.new,
// verified against the optional X-Agent-Hash header.
func (u *Updater) Download(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.serverURL+"/agent/download", nil)
	if err != nil {
		return errors.WrapTyped(errors.UpdateDownloadFailed, err, "failed to build download request")
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return errors.WrapTyped(errors.UpdateDownloadFailed, err, "download request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewTyped(errors.UpdateDownloadFailed, "orchestrator rejected download")
	}

	newPath := u.execPath + ".new"
	out, err := os.OpenFile(newPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return errors.WrapTyped(errors.UpdateDownloadFailed, err, "failed to create staging file")
	}

	hasher := md5.New()
	if _, err := io.Copy(io.MultiWriter(out, hasher), resp.Body); err != nil {
		out.Close()
		os.Remove(newPath)
		return errors.WrapTyped(errors.UpdateDownloadFailed, err, "failed to write staged executable")
	}
	if err := out.Close(); err != nil {
		os.Remove(newPath)
		return errors.WrapTyped(errors.UpdateDownloadFailed, err, "failed to finalize staged executable")
	}

	if expected := resp.Header.Get("X-Agent-Hash"); expected != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if got != expected {
			os.Remove(newPath)
			return errors.NewTyped(errors.UpdateVerifyFailed, "downloaded executable hash mismatch")
		}
	}
	return nil
}

// Apply performs step 3: backup the live executable, then move .new over
// it. On any failure after the backup exists, it is restored.
func (u *Updater) Apply() error {
	newPath := u.execPath + ".new"
	backupPath := u.execPath + ".backup"

	if err := copyFile(u.execPath, backupPath); err != nil {
		return errors.WrapTyped(errors.UpdateApplyFailed, err, "failed to back up current executable")
	}

	if err := os.Rename(newPath, u.execPath); err != nil {
		if restoreErr := copyFile(backupPath, u.execPath); restoreErr != nil && u.log != nil {
			u.log.Error("failed to restore backup after failed apply: %v", restoreErr)
		}
		return errors.WrapTyped(errors.UpdateApplyFailed, err, "failed to swap in new executable")
	}
	return nil
}

// Restart performs step 4: re-exec the same path with the original
// argument vector and environment. On platforms where exec isn't
// available it falls back to spawning a detached child and exiting.
func (u *Updater) Restart(args []string, env []string) error {
	if err := syscall.Exec(u.execPath, args, env); err != nil {
		return u.spawnDetachedFallback(args, env, err)
	}
	return nil // unreachable on success: syscall.Exec replaces the process image
}

func (u *Updater) spawnDetachedFallback(args []string, env []string, execErr error) error {
	if u.log != nil {
		u.log.Warn("exec-replace unavailable (%v), falling back to detached spawn", execErr)
	}
	cmd := exec.Command(u.execPath, args[1:]...)
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return errors.WrapTyped(errors.UpdateApplyFailed, err, "failed to spawn replacement process")
	}
	os.Exit(0)
	return nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
