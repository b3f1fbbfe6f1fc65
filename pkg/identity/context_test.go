package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ozlabs/identityctx/pkg/cohort"
	"github.com/ozlabs/identityctx/pkg/hashing"
	"github.com/ozlabs/identityctx/pkg/version"
)

// MockExecutor implements Executor for testing
type MockExecutor struct {
	mock.Mock
}

// Execute mocks a host CLI query
func (m *MockExecutor) Execute(ctx context.Context, script string) ([]string, error) {
	args := m.Called(ctx, script)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// stubEnvironment implements Environment with fixed data
type stubEnvironment struct {
	interfaces []Interface
	err        error
	ms         int
}

func (s *stubEnvironment) Interfaces() ([]Interface, error) { return s.interfaces, s.err }
func (s *stubEnvironment) Millisecond() int                 { return s.ms }

// Test fixtures
var (
	upInterface   = Interface{Name: "eth0", Up: true, HardwareAddr: "00:11:22:33:44:55"}
	downInterface = Interface{Name: "eth1", Up: false, HardwareAddr: "aa:bb:cc:dd:ee:ff"}
	noAddrUp      = Interface{Name: "lo", Up: true, HardwareAddr: ""}
)

func newTestContext(executor Executor, env Environment) *Context {
	return New(Settings{
		Executor:        executor,
		Environment:     env,
		CohortCount:     6,
		InternalDomains: []string{"@ozlabs.io"},
	})
}

func TestNewGeneratesSessionID(t *testing.T) {
	first := New(Settings{Executor: new(MockExecutor), Environment: &stubEnvironment{}})
	second := New(Settings{Executor: new(MockExecutor), Environment: &stubEnvironment{}})

	assert.NotEmpty(t, first.SessionID)
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestMACAddressHashUsesFirstOperationalInterface(t *testing.T) {
	env := &stubEnvironment{interfaces: []Interface{noAddrUp, downInterface, upInterface}}
	c := newTestContext(new(MockExecutor), env)

	got := c.MACAddressHash()

	// The down interface and the address-less loopback must be skipped.
	expected := hashing.NormalizeDigest(hashing.Digest(upInterface.HardwareAddr))
	assert.Equal(t, expected, got)
	assert.True(t, hashing.ValidDigest(got))
}

func TestMACAddressHashNoUsableInterface(t *testing.T) {
	env := &stubEnvironment{interfaces: []Interface{downInterface, noAddrUp}}
	c := newTestContext(new(MockExecutor), env)

	assert.Equal(t, "", c.MACAddressHash())
}

func TestMACAddressHashInterfaceQueryFailure(t *testing.T) {
	env := &stubEnvironment{err: errors.New("netlink unavailable")}
	c := newTestContext(new(MockExecutor), env)

	assert.Equal(t, "", c.MACAddressHash(), "environment failure must degrade to empty, not propagate")
}

func TestMACAddressHashIsCached(t *testing.T) {
	env := &stubEnvironment{interfaces: []Interface{upInterface}}
	c := newTestContext(new(MockExecutor), env)

	first := c.MACAddressHash()
	env.interfaces = nil // a later adapter change must not alter the cached value
	assert.Equal(t, first, c.MACAddressHash())
}

func TestCohortDeterministicFromMACHash(t *testing.T) {
	env := &stubEnvironment{interfaces: []Interface{upInterface}, ms: 500}
	c := newTestContext(new(MockExecutor), env)

	expected := cohort.Assign(c.MACAddressHash(), 0, 6)
	assert.Equal(t, expected, c.Cohort())
}

func TestCohortIsMemoized(t *testing.T) {
	env := &stubEnvironment{ms: 10}
	c := newTestContext(new(MockExecutor), env)

	first := c.Cohort()
	env.ms = 999 // clock movement must not change an assigned cohort
	second := c.Cohort()

	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 6)
}

func TestRefreshPopulatesAccountFields(t *testing.T) {
	executor := new(MockExecutor)
	executor.On("Execute", mock.Anything, defaultAccountScript).
		Return([]string{"Alice@OzLabs.io"}, nil)
	executor.On("Execute", mock.Anything, defaultExtensionsScript).
		Return([]string{"1.2.3", "1.10.0-preview", "1.9.9"}, nil)

	c := newTestContext(executor, &stubEnvironment{})
	c.Refresh(context.Background())

	assert.Equal(t, "Alice@OzLabs.io", c.RawUserID(), "raw identifier is preserved as reported")
	assert.Equal(t, hashing.Digest("Alice@OzLabs.io"), c.HashUserID(),
		"hashed identifier must be the hasher output byte-for-byte")
	assert.True(t, c.IsInternal(), "domain match is case-insensitive")
	assert.Equal(t, "1.10.0", c.ToolVersion().String())
	executor.AssertExpectations(t)
}

func TestRefreshQueryFailureDegradesToDefaults(t *testing.T) {
	executor := new(MockExecutor)
	executor.On("Execute", mock.Anything, mock.Anything).
		Return(nil, errors.New("host CLI not signed in"))

	c := newTestContext(executor, &stubEnvironment{})
	c.Refresh(context.Background())

	assert.Equal(t, "", c.RawUserID())
	assert.Equal(t, "", c.HashUserID(), "no identifier means no hash, not a hash of the empty string")
	assert.False(t, c.IsInternal())
	assert.Equal(t, version.Default, c.ToolVersion())
}

func TestRefreshUnparseableExtensionVersion(t *testing.T) {
	executor := new(MockExecutor)
	executor.On("Execute", mock.Anything, defaultAccountScript).
		Return([]string{"bob@example.com"}, nil)
	executor.On("Execute", mock.Anything, defaultExtensionsScript).
		Return([]string{"2.0.0", "not-a-version"}, nil)

	c := newTestContext(executor, &stubEnvironment{})
	c.Refresh(context.Background())

	assert.Equal(t, version.Default, c.ToolVersion(),
		"a single unparseable candidate aborts the whole resolution")
	assert.False(t, c.IsInternal())
}

func TestRefreshOverwritesPreviousValues(t *testing.T) {
	executor := new(MockExecutor)
	executor.On("Execute", mock.Anything, defaultAccountScript).
		Return([]string{"carol@ozlabs.io"}, nil).Once()
	executor.On("Execute", mock.Anything, defaultExtensionsScript).
		Return([]string{"3.1.0"}, nil).Once()
	executor.On("Execute", mock.Anything, mock.Anything).
		Return(nil, errors.New("signed out"))

	c := newTestContext(executor, &stubEnvironment{})

	c.Refresh(context.Background())
	require.Equal(t, "carol@ozlabs.io", c.RawUserID())

	// Second turn: account signed out, fields fall back together.
	c.Refresh(context.Background())
	assert.Equal(t, "", c.RawUserID())
	assert.Equal(t, "", c.HashUserID())
	assert.False(t, c.IsInternal())
	assert.Equal(t, version.Default, c.ToolVersion())
}

func TestHostVersionQueriedOnce(t *testing.T) {
	executor := new(MockExecutor)
	executor.On("Execute", mock.Anything, defaultHostVersionScript).
		Return([]string{"7.2.1"}, nil).Once()

	c := newTestContext(executor, &stubEnvironment{})

	expected := version.Version{Major: 7, Minor: 2, Build: 1, Revision: -1}
	assert.Equal(t, expected, c.HostVersion())
	assert.Equal(t, expected, c.HostVersion(), "second call must hit the cache")
	executor.AssertNumberOfCalls(t, "Execute", 1)
}

func TestHostVersionQueryFailure(t *testing.T) {
	executor := new(MockExecutor)
	executor.On("Execute", mock.Anything, defaultHostVersionScript).
		Return(nil, errors.New("timeout"))

	c := newTestContext(executor, &stubEnvironment{})
	assert.Equal(t, version.Default, c.HostVersion())
}

func TestHostVersionUnparseable(t *testing.T) {
	executor := new(MockExecutor)
	executor.On("Execute", mock.Anything, defaultHostVersionScript).
		Return([]string{"dev-build"}, nil)

	c := newTestContext(executor, &stubEnvironment{})
	assert.Equal(t, version.Default, c.HostVersion())
}

func TestModuleVersionFromBuildMetadata(t *testing.T) {
	c := newTestContext(new(MockExecutor), &stubEnvironment{})

	// No executor call is involved; the default dev build resolves as 0.0.0.
	v := c.ModuleVersion()
	assert.Equal(t, version.Version{Major: 0, Minor: 0, Build: 0, Revision: -1}, v)
}

func TestSettingsDefaults(t *testing.T) {
	c := New(Settings{Executor: new(MockExecutor), Environment: &stubEnvironment{}})

	assert.Equal(t, defaultCohortCount, c.cohortCount)
	assert.Equal(t, defaultAccountScript, c.accountScript)
	assert.Equal(t, defaultExtensionsScript, c.extensionsScript)
	assert.Equal(t, defaultHostVersionScript, c.hostVersionScript)
	assert.Equal(t, version.Default, c.ToolVersion())
}
