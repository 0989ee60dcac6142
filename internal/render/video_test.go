package render

import (
	"bytes"
	"context"
	"testing"

	"github.com/andresmejia3/crease/internal/director"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawFrames returns n solid frames; frame i is filled with byte i.
func rawFrames(w, h, n int) []byte {
	size := w * h * 4
	out := make([]byte, 0, size*n)
	for i := 1; i <= n; i++ {
		out = append(out, bytes.Repeat([]byte{byte(i)}, size)...)
	}
	return out
}

func TestVideoSinkPairsFramesAndRepeats(t *testing.T) {
	t.Parallel()

	const w, h = 320, 240
	var dst bytes.Buffer
	progress := 0
	sink := NewVideoSink(bytes.NewReader(rawFrames(w, h, 4)), &dst, New(w, h, DefaultStyle()), func() { progress++ }, nil)

	ctx := context.Background()
	require.NoError(t, sink.WriteDirective(ctx, director.Directive{Index: 1, Zoom: director.FullFrame(), Repeat: 1}))
	// frame 2 is skipped; frame 3 goes out twice
	require.NoError(t, sink.WriteDirective(ctx, director.Directive{Index: 3, Zoom: director.FullFrame(), Repeat: 2}))

	size := w * h * 4
	require.Equal(t, 3*size, dst.Len())
	out := dst.Bytes()
	// a pixel clear of the HUD keeps the source value
	px := (20*w + 100) * 4
	assert.Equal(t, byte(1), out[px])
	assert.Equal(t, byte(3), out[size+px])
	assert.Equal(t, out[size:2*size], out[2*size:])

	assert.Equal(t, 2, sink.Frames)
	assert.Equal(t, 3, sink.Written)
	assert.Equal(t, 2, progress)
}

func TestVideoSinkDropsDirectivesPastTheSource(t *testing.T) {
	t.Parallel()

	const w, h = 64, 48
	var dst bytes.Buffer
	sink := NewVideoSink(bytes.NewReader(rawFrames(w, h, 1)), &dst, New(w, h, DefaultStyle()), nil, nil)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, sink.WriteDirective(ctx, director.Directive{Index: i, Zoom: director.FullFrame(), Repeat: 1}))
	}
	assert.Equal(t, 1, sink.Frames)
	assert.Equal(t, 2, sink.Missing)
	assert.Equal(t, w*h*4, dst.Len())
}

func TestVideoSinkRejectsOutOfOrderDirectives(t *testing.T) {
	t.Parallel()

	const w, h = 64, 48
	sink := NewVideoSink(bytes.NewReader(rawFrames(w, h, 3)), &bytes.Buffer{}, New(w, h, DefaultStyle()), nil, nil)

	ctx := context.Background()
	require.NoError(t, sink.WriteDirective(ctx, director.Directive{Index: 2, Zoom: director.FullFrame(), Repeat: 1}))
	err := sink.WriteDirective(ctx, director.Directive{Index: 1, Zoom: director.FullFrame(), Repeat: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directive 1")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, sink.WriteDirective(cancelled, director.Directive{Index: 3}), context.Canceled)
}
