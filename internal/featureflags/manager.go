// Package featureflags evaluates the runtime toggles configured through
// FEATURE_FLAGS, e.g. "feed_discovery=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// FeedDiscovery gates padding of sparse feeds with posts from public
// communities the user has not joined.
const FeedDiscovery = "feed_discovery"

// defaults apply to known flags that FEATURE_FLAGS leaves unset.
var defaults = map[string]string{
	FeedDiscovery: "on",
}

// rollout is a parsed flag value: the share of users, 0 to 100, that see
// the flag enabled.
type rollout struct {
	raw     string
	percent int
}

// Manager holds the effective flag set: configured values over defaults.
type Manager struct {
	flags    map[string]rollout
	rejected []string
}

// NewManager parses a comma-separated name=value list. Values are on/true/1,
// off/false/0 or a percentage such as 25%. Malformed entries are skipped and
// reported by Rejected.
func NewManager(raw string) *Manager {
	m := &Manager{flags: make(map[string]rollout, len(defaults))}
	for name, value := range defaults {
		r, _ := parseRollout(value)
		m.flags[name] = r
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name = normalize(name)
		if !ok || name == "" {
			m.rejected = append(m.rejected, pair)
			continue
		}
		r, err := parseRollout(value)
		if err != nil {
			m.rejected = append(m.rejected, pair)
			continue
		}
		m.flags[name] = r
	}
	return m
}

func parseRollout(value string) (rollout, error) {
	value = normalize(value)
	switch value {
	case "on", "true", "1":
		return rollout{raw: value, percent: 100}, nil
	case "off", "false", "0":
		return rollout{raw: value, percent: 0}, nil
	}
	pct, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rollout{}, fmt.Errorf("flag value %q is not on, off or a percentage", value)
	}
	n, err := strconv.Atoi(pct)
	if err != nil || n < 0 || n > 100 {
		return rollout{}, fmt.Errorf("flag value %q is not a percentage between 0%% and 100%%", value)
	}
	return rollout{raw: value, percent: n}, nil
}

// Enabled reports whether name is on for userID. Partial rollouts are
// stable per user and never include anonymous callers; unknown flags are off.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}
	switch {
	case r.percent <= 0:
		return false
	case r.percent >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < r.percent
}

// Raw returns the effective value of every flag, defaults included.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for name, r := range m.flags {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

// Rejected lists the malformed entries NewManager skipped, in input order.
func (m *Manager) Rejected() []string {
	return append([]string(nil), m.rejected...)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
