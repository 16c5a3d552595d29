package proto

// compactAfter is the read-cursor distance past which the consumed
// prefix of a Bytestream is dropped.
const compactAfter = 100

// Bytestream is an append-only byte buffer with a monotonically
// advancing read cursor. Writes go to the tail, reads consume from the
// cursor. It moves bytes verbatim; byte-order concerns belong to the
// codec.
type Bytestream struct {
	data []byte
	off  int
}

// NewBytestream returns a Bytestream whose unread content is a copy of b.
func NewBytestream(b []byte) *Bytestream {
	s := &Bytestream{}
	s.Write(b)
	return s
}

// Write appends p to the buffer.
func (s *Bytestream) Write(p []byte) {
	s.data = append(s.data, p...)
}

// WriteByte appends a single byte to the buffer.
func (s *Bytestream) WriteByte(b byte) {
	s.data = append(s.data, b)
}

// Overwrite discards the buffer and cursor, then appends p.
func (s *Bytestream) Overwrite(p []byte) {
	s.Clear()
	s.Write(p)
}

// Read copies up to len(p) unread bytes into p, advances the cursor by
// the amount copied and returns it.
func (s *Bytestream) Read(p []byte) int {
	n := copy(p, s.data[s.off:])
	s.off += n
	return n
}

// Extract consumes exactly n bytes starting at the cursor. It returns
// ok == false, consuming nothing, when fewer than n bytes remain. The
// returned slice is only valid until the next operation on the stream.
func (s *Bytestream) Extract(n int) (b []byte, ok bool) {
	if s.Size() < n {
		return nil, false
	}
	// compacting up front keeps the returned slice intact
	if s.off > compactAfter {
		s.compact()
	}
	b = s.data[s.off : s.off+n]
	s.off += n
	return b, true
}

// ExtractByte consumes and returns a single byte.
func (s *Bytestream) ExtractByte() (byte, bool) {
	b, ok := s.Extract(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

// Size reports the number of unread bytes.
func (s *Bytestream) Size() int {
	return len(s.data) - s.off
}

// Bytes returns the unread portion of the buffer without consuming it.
func (s *Bytestream) Bytes() []byte {
	return s.data[s.off:]
}

// Clear resets the cursor and drops the buffer.
func (s *Bytestream) Clear() {
	s.data = s.data[:0]
	s.off = 0
}

func (s *Bytestream) compact() {
	s.data = append(s.data[:0], s.data[s.off:]...)
	s.off = 0
}
