package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytestreamReadWrite(t *testing.T) {
	t.Parallel()

	s := NewBytestream([]byte{1, 2, 3, 4, 5})
	require.Equal(t, 5, s.Size())

	buf := make([]byte, 3)
	n := s.Read(buf)
	require.Equal(t, 3, n)
	require.Equal(t, []byte{1, 2, 3}, buf)
	require.Equal(t, 2, s.Size())
}

func TestBytestreamReadPastEnd(t *testing.T) {
	t.Parallel()

	s := NewBytestream([]byte{1, 2})
	buf := make([]byte, 8)
	n := s.Read(buf)
	require.Equal(t, 2, n)
	require.Equal(t, 0, s.Size())

	n = s.Read(buf)
	require.Equal(t, 0, n)
}

func TestBytestreamExtract(t *testing.T) {
	t.Parallel()

	s := NewBytestream([]byte{0xAA, 0xBB, 0xCC})
	b, ok := s.Extract(2)
	require.True(t, ok)
	require.Equal(t, []byte{0xAA, 0xBB}, b)

	// short extracts consume nothing
	_, ok = s.Extract(2)
	require.False(t, ok)
	require.Equal(t, 1, s.Size())

	c, ok := s.ExtractByte()
	require.True(t, ok)
	require.Equal(t, byte(0xCC), c)
}

func TestBytestreamCompaction(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	s := NewBytestream(payload)

	// walk past the compaction threshold one byte at a time; the
	// remaining content must stay intact throughout
	for i := 0; i < 200; i++ {
		b, ok := s.ExtractByte()
		require.True(t, ok)
		require.Equal(t, byte(i), b)
		require.Equal(t, 300-i-1, s.Size())
	}
	require.Equal(t, byte(200), s.Bytes()[0])
}

func TestBytestreamOverwrite(t *testing.T) {
	t.Parallel()

	s := NewBytestream([]byte{1, 2, 3})
	s.Overwrite([]byte{9})
	require.Equal(t, 1, s.Size())
	b, ok := s.ExtractByte()
	require.True(t, ok)
	require.Equal(t, byte(9), b)
}

func TestBytestreamClear(t *testing.T) {
	t.Parallel()

	s := NewBytestream([]byte{1, 2, 3})
	s.Clear()
	require.Equal(t, 0, s.Size())

	s.Write([]byte{7})
	require.Equal(t, 1, s.Size())
}
