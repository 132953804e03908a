package properties

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func TestDeduceFocusStyle(t *testing.T) {
	tests := []struct {
		name      string
		input     *bool
		takeFocus bool
		want      FocusStyle
	}{
		{"input with take-focus", boolPtr(true), true, LocallyActive},
		{"input without take-focus", boolPtr(true), false, Passive},
		{"no input with take-focus", boolPtr(false), true, GloballyActive},
		{"no input without take-focus", boolPtr(false), false, NoInput},
		{"unset with take-focus", nil, true, GloballyActive},
		{"unset without take-focus", nil, false, Passive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hints := &WmHints{Input: tt.input}
			got := DeduceFocusStyle(hints, Protocols{TakeFocus: tt.takeFocus})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeduceFocusStyleNilHints(t *testing.T) {
	assert.Equal(t, Passive, DeduceFocusStyle(nil, Protocols{}))
	assert.Equal(t, GloballyActive, DeduceFocusStyle(nil, Protocols{TakeFocus: true}))
}

func TestFixedSizeFloats(t *testing.T) {
	p := &WindowProperties{
		SizeHints: &SizeHints{
			MinWidth: intPtr(300), MinHeight: intPtr(200),
			MaxWidth: intPtr(300), MaxHeight: intPtr(500),
		},
	}
	d := DeduceFloatStatus(p, 1)
	assert.True(t, d.Floating)
	assert.Equal(t, xproto.Window(0), d.Parent)
}

func TestPartialSizeHintsDoNotFloat(t *testing.T) {
	p := &WindowProperties{
		SizeHints:   &SizeHints{MinWidth: intPtr(300), MinHeight: intPtr(200)},
		WindowTypes: []WindowType{WindowTypeNormal},
	}
	assert.False(t, DeduceFloatStatus(p, 1).Floating)
}

func TestModalFloatsWithParentChain(t *testing.T) {
	const root = 1
	p := &WindowProperties{
		NetWmState:   NetWmState{Modal: true},
		TransientFor: 42,
	}
	d := DeduceFloatStatus(p, root)
	assert.True(t, d.Floating)
	assert.Equal(t, xproto.Window(42), d.Parent)

	// Without transient-for, the group leader stands in.
	p = &WindowProperties{
		NetWmState: NetWmState{Modal: true},
		Hints:      &WmHints{WindowGroup: 77},
	}
	d = DeduceFloatStatus(p, root)
	assert.True(t, d.Floating)
	assert.Equal(t, xproto.Window(77), d.Parent)
}

func TestWindowTypeDecides(t *testing.T) {
	p := &WindowProperties{WindowTypes: []WindowType{WindowTypeNormal}}
	assert.False(t, DeduceFloatStatus(p, 1).Floating)

	p = &WindowProperties{WindowTypes: []WindowType{WindowTypeDialog}, TransientFor: 9}
	d := DeduceFloatStatus(p, 1)
	assert.True(t, d.Floating)
	assert.Equal(t, xproto.Window(9), d.Parent)

	// First recognized type wins.
	p = &WindowProperties{WindowTypes: []WindowType{WindowTypeUtility, WindowTypeDialog, WindowTypeNormal}}
	assert.True(t, DeduceFloatStatus(p, 1).Floating)
}

func TestTransientWithoutTypeIsDialog(t *testing.T) {
	p := &WindowProperties{TransientFor: 9}
	d := DeduceFloatStatus(p, 1)
	assert.True(t, d.Floating)
	assert.Equal(t, xproto.Window(9), d.Parent)
}

func TestNoTypeNoTransientDocks(t *testing.T) {
	p := &WindowProperties{}
	assert.False(t, DeduceFloatStatus(p, 1).Floating)
}

func TestParentNeverRoot(t *testing.T) {
	const root = 1
	p := &WindowProperties{WindowTypes: []WindowType{WindowTypeDialog}, TransientFor: root}
	d := DeduceFloatStatus(p, root)
	assert.True(t, d.Floating)
	assert.Equal(t, xproto.Window(0), d.Parent)
}

func TestWmNamePrecedence(t *testing.T) {
	var n WmName
	assert.True(t, n.SetWmName("term"))
	assert.Equal(t, "term", n.Name)
	assert.True(t, n.SetNetWmName("Terminal"))
	// WM_NAME loses once _NET_WM_NAME has been seen.
	assert.False(t, n.SetWmName("other"))
	assert.Equal(t, "Terminal", n.Name)
	assert.False(t, n.SetNetWmName("Terminal"))
	assert.True(t, n.SetNetWmName("Terminal 2"))
}

func TestParseWmHints(t *testing.T) {
	data := make([]uint32, 9)
	data[0] = hintInput | hintWindowGroup | hintUrgency
	data[1] = 1
	data[8] = 99
	h := ParseWmHints(data)
	require.NotNil(t, h)
	require.NotNil(t, h.Input)
	assert.True(t, *h.Input)
	assert.True(t, h.Urgent)
	assert.Equal(t, xproto.Window(99), h.WindowGroup)

	assert.Nil(t, ParseWmHints(data[:4]))

	data[0] = 0
	h = ParseWmHints(data)
	require.NotNil(t, h)
	assert.Nil(t, h.Input)
	assert.False(t, h.Urgent)
}

func TestParseSizeHints(t *testing.T) {
	data := make([]uint32, 18)
	data[0] = sizeHintPMinSize | sizeHintPMaxSize
	data[5], data[6] = 300, 200
	data[7], data[8] = 300, 200
	s := ParseSizeHints(data)
	require.NotNil(t, s)
	assert.Equal(t, 300, *s.MinWidth)
	assert.Equal(t, 200, *s.MaxHeight)
	assert.True(t, s.Fixed())

	assert.Nil(t, ParseSizeHints(data[:3]))
}
