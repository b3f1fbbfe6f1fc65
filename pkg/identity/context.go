// Package identity derives anonymous, cached identity facts for the current
// host CLI session: hashed user id, hashed MAC address, rollout cohort, and
// resolved tool/host/module versions.
//
// A Context never raises an error to its caller. Host CLI queries, version
// parsing and hashing all degrade to well-defined defaults on failure — a
// missing telemetry datum must never break the host application's primary
// workflow. Failures are counted in Prometheus metrics instead.
//
// A Context is not safe for concurrent mutation. Lazily computed fields are
// first-caller-wins with no internal locking; a multi-threaded embedder must
// serialize access externally.
package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ozlabs/identityctx/internal/buildinfo"
	"github.com/ozlabs/identityctx/pkg/cohort"
	"github.com/ozlabs/identityctx/pkg/hashing"
	"github.com/ozlabs/identityctx/pkg/metrics"
	"github.com/ozlabs/identityctx/pkg/version"
)

// Default query scripts for the ozlabs host CLI. Each returns plain lines on
// stdout: one account identifier, one installed extension version per line,
// one host CLI version.
const (
	defaultAccountScript     = "ozctl account show --query user.name --output tsv"
	defaultExtensionsScript  = "ozctl extension list --query [].version --output tsv"
	defaultHostVersionScript = "ozctl version --query core --output tsv"
)

// defaultCohortCount is the number of rollout buckets when config supplies none.
const defaultCohortCount = 6

// Settings configures a Context. Zero values fall back to defaults in New.
type Settings struct {
	// Executor runs host CLI queries. Defaults to NewShellExecutor("sh", 5s).
	Executor Executor

	// Environment supplies network adapters and the clock. Defaults to the real host.
	Environment Environment

	// CohortCount is the number of rollout buckets (> 0). Defaults to 6.
	CohortCount int

	// InternalDomains classify an account as internal by email domain suffix.
	InternalDomains []string

	// Query script overrides.
	AccountScript     string
	ExtensionsScript  string
	HostVersionScript string
}

// Context holds cached, derived identity facts about the current session.
// Construct one per host session with New; call Refresh once per interactive
// turn to re-derive the account-bound fields.
type Context struct {
	// SessionID correlates all envelopes emitted by this context instance.
	SessionID string

	executor        Executor
	env             Environment
	cohortCount     int
	internalDomains []string

	accountScript     string
	extensionsScript  string
	hostVersionScript string

	// Refreshed together by Refresh.
	rawUserID   string
	hashUserID  string
	isInternal  bool
	toolVersion version.Version

	// Lazily computed, first caller wins.
	cohortDone bool
	cohortVal  int

	macDone bool
	macHash string

	hostVersionDone bool
	hostVersion     version.Version

	moduleVersionDone bool
	moduleVersion     version.Version
}

// New creates a Context with a fresh session id. Fields start at their
// defaults; call Refresh to populate the account-bound ones.
func New(settings Settings) *Context {
	executor := settings.Executor
	if executor == nil {
		executor = NewShellExecutor("", 0)
	}

	env := settings.Environment
	if env == nil {
		env = NewHostEnvironment()
	}

	cohortCount := settings.CohortCount
	if cohortCount <= 0 {
		cohortCount = defaultCohortCount
	}

	c := &Context{
		SessionID:         uuid.NewString(),
		executor:          executor,
		env:               env,
		cohortCount:       cohortCount,
		internalDomains:   settings.InternalDomains,
		accountScript:     settings.AccountScript,
		extensionsScript:  settings.ExtensionsScript,
		hostVersionScript: settings.HostVersionScript,
		toolVersion:       version.Default,
	}

	if c.accountScript == "" {
		c.accountScript = defaultAccountScript
	}
	if c.extensionsScript == "" {
		c.extensionsScript = defaultExtensionsScript
	}
	if c.hostVersionScript == "" {
		c.hostVersionScript = defaultHostVersionScript
	}

	return c
}

// Cohort returns this machine's rollout bucket in [0, cohortCount).
// Computed once from the hashed MAC address and cached for the lifetime of
// the context, even if the clock or adapter list would now produce a
// different result.
func (c *Context) Cohort() int {
	if c.cohortDone {
		return c.cohortVal
	}

	mac := c.MACAddressHash()
	if !endsInHexDigit(mac) {
		if mac != "" {
			metrics.ParseFailuresTotal.WithLabelValues("hex_digit").Inc()
		}
		metrics.CohortFallbackTotal.Inc()
	}

	c.cohortVal = cohort.Assign(mac, c.env.Millisecond(), c.cohortCount)
	c.cohortDone = true

	return c.cohortVal
}

// MACAddressHash returns the normalized SHA256 digest of the first
// operational network adapter's physical address: 64 lowercase hex
// characters with separators stripped, or "" when no usable adapter exists.
// Computed once and cached.
func (c *Context) MACAddressHash() string {
	if c.macDone {
		return c.macHash
	}

	c.macHash = hashing.NormalizeDigest(hashing.Digest(c.firstPhysicalAddress()))
	c.macDone = true

	return c.macHash
}

// firstPhysicalAddress returns the MAC of the first operational adapter with
// a non-empty physical address, or "".
func (c *Context) firstPhysicalAddress() string {
	interfaces, err := c.env.Interfaces()
	if err != nil {
		metrics.QueryFailuresTotal.WithLabelValues("interfaces").Inc()
		return ""
	}

	for _, iface := range interfaces {
		if iface.Up && iface.HardwareAddr != "" {
			return iface.HardwareAddr
		}
	}

	return ""
}

// RawUserID returns the account identifier from the last Refresh. It is the
// only raw identifier held by the context and never leaves the host.
func (c *Context) RawUserID() string {
	return c.rawUserID
}

// HashUserID returns the hashed account identifier from the last Refresh,
// byte-for-byte as the hasher emitted it.
func (c *Context) HashUserID() string {
	return c.hashUserID
}

// IsInternal reports whether the last refreshed account belongs to one of
// the configured internal domains.
func (c *Context) IsInternal() bool {
	return c.isInternal
}

// ToolVersion returns the newest installed extension version from the last
// Refresh, or 0.0.0.0 when none was found.
func (c *Context) ToolVersion() version.Version {
	return c.toolVersion
}

// HostVersion returns the host CLI's own version, queried once and cached;
// 0.0.0.0 when the query or parse fails.
func (c *Context) HostVersion() version.Version {
	if c.hostVersionDone {
		return c.hostVersion
	}

	c.hostVersion = version.Default
	lines, err := c.executor.Execute(context.Background(), c.hostVersionScript)
	switch {
	case err != nil, len(lines) == 0:
		metrics.QueryFailuresTotal.WithLabelValues("host_version").Inc()
	default:
		v, err := version.Parse(lines[0])
		if err != nil {
			metrics.ParseFailuresTotal.WithLabelValues("version").Inc()
		} else {
			c.hostVersion = v
		}
	}
	c.hostVersionDone = true

	return c.hostVersion
}

// ModuleVersion returns this module's own version, resolved once from build
// metadata rather than via the executor.
func (c *Context) ModuleVersion() version.Version {
	if c.moduleVersionDone {
		return c.moduleVersion
	}

	c.moduleVersion = version.ResolveSingle(buildinfo.Version)
	c.moduleVersionDone = true

	return c.moduleVersion
}

// Refresh re-derives the account-bound fields: RawUserID, HashUserID,
// IsInternal and ToolVersion. Each query failure degrades that field to its
// default. All four fields are assigned together at the end, so a caller
// never observes a partially refreshed context.
func (c *Context) Refresh(ctx context.Context) {
	rawUserID := ""
	if lines, err := c.executor.Execute(ctx, c.accountScript); err != nil {
		metrics.QueryFailuresTotal.WithLabelValues("account").Inc()
	} else if len(lines) > 0 {
		rawUserID = strings.TrimSpace(lines[0])
	}

	toolVersion := version.Default
	if lines, err := c.executor.Execute(ctx, c.extensionsScript); err != nil {
		metrics.QueryFailuresTotal.WithLabelValues("extensions").Inc()
	} else {
		toolVersion = version.ResolveLatest(lines)
	}

	c.rawUserID = rawUserID
	c.hashUserID = hashing.Digest(rawUserID)
	c.isInternal = c.classifyInternal(rawUserID)
	c.toolVersion = toolVersion

	metrics.RefreshesTotal.Inc()
	metrics.LastRefreshTimestamp.SetToCurrentTime()
}

// classifyInternal reports whether userID ends with a configured internal
// domain suffix, case-insensitively.
func (c *Context) classifyInternal(userID string) bool {
	lower := strings.ToLower(userID)
	for _, domain := range c.internalDomains {
		if domain != "" && strings.HasSuffix(lower, strings.ToLower(domain)) {
			return true
		}
	}

	return false
}

// endsInHexDigit reports whether s is non-empty and its last character is a
// hex digit, i.e. whether cohort assignment will use the deterministic path.
func endsInHexDigit(s string) bool {
	if s == "" {
		return false
	}

	last := s[len(s)-1]
	switch {
	case last >= '0' && last <= '9':
		return true
	case last >= 'a' && last <= 'f':
		return true
	case last >= 'A' && last <= 'F':
		return true
	}

	return false
}
