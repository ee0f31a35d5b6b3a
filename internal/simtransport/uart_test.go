package simtransport

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasa-rockoon/wcbus/pkg/uart"
)

func TestLoopbackChainCarriesBytesBothDirections(t *testing.T) {
	a, b := NewLoopbackChain()

	a.Write(uart.Lower, []byte{1, 2, 3})
	for _, want := range []byte{1, 2, 3} {
		got, ok := b.ReadByte(uart.Upper)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := b.ReadByte(uart.Upper)
	require.False(t, ok)

	b.Write(uart.Upper, []byte{9})
	got, ok := a.ReadByte(uart.Lower)
	require.True(t, ok)
	require.EqualValues(t, 9, got)
}

func TestOpenChainEndsAbsorbWrites(t *testing.T) {
	a, _ := NewLoopbackChain()
	a.Write(uart.Upper, []byte{1, 2, 3}) // open end, nothing reads it
	_, ok := a.ReadByte(uart.Upper)
	require.False(t, ok)
}
