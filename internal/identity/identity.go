// Package identity implements C1: deriving a stable node id from the
// host's MAC set, enumerating routable IP addresses, and collecting a
// best-effort hardware inventory (CPU, RAM, GPU, disk).
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DimaJoyti/node-agent/pkg/logger"
)

// Identity is computed once at startup and never mutated afterwards.
type Identity struct {
	NodeID       string    `json:"node_id"`
	Hostname     string    `json:"hostname"`
	IPAddresses  []string  `json:"ip_addresses"`
	Platform     string    `json:"platform"`
	StartedAt    time.Time `json:"started_at"`
	AgentVersion string    `json:"agent_version"`
	AgentPort    int       `json:"agent_port"`
}

// fallbackIDFile is the sibling file used when no stable MAC address is
// available (deviates from the source agent per spec.md §9's Open
// Question; keeps I8 — node_id stability across restarts — true on
// platforms that expose no hardware MAC, e.g. some containers).
const fallbackIDFile = "node_id"

// New builds the Identity for this process. agentDir is where
// agent_config.json (and, if needed, the fallback id file) lives.
func New(agentDir string, agentPort int, agentVersion string, log *logger.Logger) (*Identity, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	nodeID, err := deriveNodeID(hostname, agentDir, log)
	if err != nil {
		return nil, err
	}

	return &Identity{
		NodeID:       nodeID,
		Hostname:     hostname,
		IPAddresses:  enumerateIPv4(),
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
		StartedAt:    time.Now(),
		AgentVersion: agentVersion,
		AgentPort:    agentPort,
	}, nil
}

// deriveNodeID implements spec.md §4.1: sha256(hostname + "-" + join(macs,
// "-")), first 32 hex chars. When the host exposes no MAC (virtualized or
// sandboxed environments), falls back to a first-run UUID persisted next
// to agent_config.json so the id is still stable across restarts.
func deriveNodeID(hostname, agentDir string, log *logger.Logger) (string, error) {
	macs := collectMACs()
	if len(macs) == 0 {
		id, err := fallbackNodeID(agentDir)
		if err != nil {
			return "", err
		}
		if log != nil {
			log.Warn("no stable MAC address found, using persisted fallback id")
		}
		return id, nil
	}

	sort.Strings(macs)
	sum := sha256.Sum256([]byte(hostname + "-" + strings.Join(macs, "-")))
	return hex.EncodeToString(sum[:])[:32], nil
}

func collectMACs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var macs []string
	for _, iface := range ifaces {
		addr := iface.HardwareAddr.String()
		if addr == "" || addr == "00:00:00:00:00:00" {
			continue
		}
		macs = append(macs, addr)
	}
	return macs
}

func fallbackNodeID(agentDir string) (string, error) {
	path := agentDir + string(os.PathSeparator) + fallbackIDFile
	if b, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(b))
		if len(id) == 32 {
			return id, nil
		}
	}

	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	sum := sha256.Sum256([]byte(raw))
	id := hex.EncodeToString(sum[:])[:32]

	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("persist fallback node id: %w", err)
	}
	return id, nil
}

// enumerateIPv4 returns all non-loopback IPv4 addresses, in the order
// net.InterfaceAddrs reports them.
func enumerateIPv4() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	var out []string
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil || ip4[0] == 127 {
			continue
		}
		out = append(out, ip4.String())
	}
	return out
}
