package atoms

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInterner struct {
	interned []string
}

func (f *fakeInterner) InternAtoms(names []string) ([]xproto.Atom, error) {
	f.interned = names
	out := make([]xproto.Atom, len(names))
	for i := range names {
		out[i] = xproto.Atom(100 + i)
	}
	return out, nil
}

func TestRegistryRoundTrip(t *testing.T) {
	in := &fakeInterner{}
	r, err := NewRegistry(in)
	require.NoError(t, err)
	assert.Len(t, in.interned, capabilityCount)

	atom := r.Atom(NetWmState)
	assert.NotZero(t, atom)
	c, ok := r.Capability(atom)
	require.True(t, ok)
	assert.Equal(t, NetWmState, c)

	_, ok = r.Capability(xproto.Atom(9999))
	assert.False(t, ok)
}

func TestCapabilityNamesComplete(t *testing.T) {
	for c := Capability(0); int(c) < capabilityCount; c++ {
		assert.NotEmpty(t, c.String(), "capability %d has no name", c)
	}
}

func TestSupportedListsOnlyEwmhAtoms(t *testing.T) {
	r, err := NewRegistry(&fakeInterner{})
	require.NoError(t, err)
	supported := r.Supported()
	assert.NotEmpty(t, supported)
	for _, a := range supported {
		c, ok := r.Capability(a)
		require.True(t, ok)
		assert.Contains(t, c.String(), "_NET_")
	}
	// ICCCM atoms are consumed, not advertised.
	assert.NotContains(t, supported, r.Atom(WmProtocols))
	assert.Contains(t, supported, r.Atom(NetWmStateFullscreen))
}
