// Package proto implements the dotchat wire protocol: a length-prefixed,
// type-tagged binary codec for command messages, and the typed
// request/response envelopes built on top of it.
//
// Wire layout:
//
//	message   := magic(2) version(2) command(string) map
//	magic     := 2E 43
//	version   := major(1) minor(1)
//	string    := len(1) bytes(len)
//	map       := count(1) entry{count}
//	entry     := string tag(1) value
//	list      := elem_tag(1) count(4,BE) elem_body{count}
//
// Multibyte integers are big-endian on the wire.
package proto

import "encoding/binary"

const (
	magic0 = 0x2E
	magic1 = 0x43
)

// Preferred protocol version. Messages claiming a higher version are
// rejected on decode.
const (
	MajorVersion byte = 0x00
	MinorVersion byte = 0x01
)

// Message is a command string plus a map of named typed values.
type Message struct {
	Cmd  string
	Args *Obj
}

// NewMessage returns a message with the given command and no arguments.
func NewMessage(cmd string) *Message {
	return &Message{Cmd: cmd, Args: NewObj()}
}

// Encode serializes the message, magic number and version included.
func (m *Message) Encode() ([]byte, error) {
	s := &Bytestream{}
	if err := m.EncodeTo(s); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// EncodeTo appends the encoded message to s. On error the stream may
// hold a partial encoding and must be discarded.
func (m *Message) EncodeTo(s *Bytestream) error {
	s.WriteByte(magic0)
	s.WriteByte(magic1)
	s.WriteByte(MajorVersion)
	s.WriteByte(MinorVersion)
	if err := writeString(s, m.Cmd); err != nil {
		return err
	}
	return writeObj(s, m.Args)
}

func writeString(s *Bytestream, v string) error {
	if len(v) > 0xFF {
		return wireErr(MessageTooBig, "string of %d bytes exceeds 255", len(v))
	}
	s.WriteByte(byte(len(v)))
	s.Write([]byte(v))
	return nil
}

func writeU16(s *Bytestream, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	s.Write(b[:])
}

func writeU32(s *Bytestream, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.Write(b[:])
}

func writeObj(s *Bytestream, o *Obj) error {
	if o.Len() > 0xFF {
		return wireErr(MessageTooBig, "map of %d entries exceeds 255", o.Len())
	}
	s.WriteByte(byte(o.Len()))
	for _, key := range o.Keys() {
		if err := writeString(s, key); err != nil {
			return err
		}
		v, _ := o.Get(key)
		s.WriteByte(byte(v.Tag()))
		if err := writeValue(s, v); err != nil {
			return err
		}
	}
	return nil
}

// writeValue emits the value body. The tag byte is the caller's
// responsibility; list elements are emitted without per-element tags.
func writeValue(s *Bytestream, v Value) error {
	switch v := v.(type) {
	case Int8:
		s.WriteByte(byte(v))
	case Uint8:
		s.WriteByte(byte(v))
	case Char:
		s.WriteByte(byte(v))
	case Int16:
		writeU16(s, uint16(v))
	case Uint16:
		writeU16(s, uint16(v))
	case Int32:
		writeU32(s, uint32(v))
	case Uint32:
		writeU32(s, uint32(v))
	case String:
		return writeString(s, string(v))
	case *Obj:
		return writeObj(s, v)
	case *List:
		s.WriteByte(byte(v.Elem()))
		writeU32(s, uint32(v.Len()))
		for _, item := range v.Items() {
			if err := writeValue(s, item); err != nil {
				return err
			}
		}
	}
	return nil
}

// Decode consumes one message from s. A Truncated error means the
// stream ended mid-message; callers re-framing a transport may retry
// with more bytes on a fresh stream.
func Decode(s *Bytestream) (*Message, error) {
	hdr, ok := s.Extract(2)
	if !ok {
		return nil, wireErr(Truncated, "message header")
	}
	if hdr[0] != magic0 || hdr[1] != magic1 {
		return nil, wireErr(BadFraming, "missing magic number")
	}
	ver, ok := s.Extract(2)
	if !ok {
		return nil, wireErr(Truncated, "protocol version")
	}
	major, minor := ver[0], ver[1]
	if major > MajorVersion || (major == MajorVersion && minor > MinorVersion) {
		return nil, wireErr(IncompatibleVersion, "got %d.%d, prefer %d.%d", major, minor, MajorVersion, MinorVersion)
	}
	cmd, err := readString(s)
	if err != nil {
		return nil, err
	}
	args, err := readObj(s)
	if err != nil {
		return nil, err
	}
	return &Message{Cmd: cmd, Args: args}, nil
}

func readString(s *Bytestream) (string, error) {
	n, ok := s.ExtractByte()
	if !ok {
		return "", wireErr(Truncated, "string length")
	}
	b, ok := s.Extract(int(n))
	if !ok {
		return "", wireErr(Truncated, "string of %d bytes", n)
	}
	return string(b), nil
}

func readU16(s *Bytestream) (uint16, error) {
	b, ok := s.Extract(2)
	if !ok {
		return 0, wireErr(Truncated, "16-bit value")
	}
	return binary.BigEndian.Uint16(b), nil
}

func readU32(s *Bytestream) (uint32, error) {
	b, ok := s.Extract(4)
	if !ok {
		return 0, wireErr(Truncated, "32-bit value")
	}
	return binary.BigEndian.Uint32(b), nil
}

func readObj(s *Bytestream) (*Obj, error) {
	count, ok := s.ExtractByte()
	if !ok {
		return nil, wireErr(Truncated, "map entry count")
	}
	o := NewObj()
	for i := 0; i < int(count); i++ {
		key, err := readString(s)
		if err != nil {
			return nil, err
		}
		tag, ok := s.ExtractByte()
		if !ok {
			return nil, wireErr(Truncated, "type tag for key %q", key)
		}
		v, err := readValue(Tag(tag), s)
		if err != nil {
			return nil, err
		}
		// duplicate keys are not rejected on decode; last write wins
		o.Set(key, v)
	}
	return o, nil
}

func readValue(tag Tag, s *Bytestream) (Value, error) {
	switch tag {
	case TagInt8:
		b, ok := s.ExtractByte()
		if !ok {
			return nil, wireErr(Truncated, "int8 value")
		}
		return Int8(b), nil
	case TagUint8:
		b, ok := s.ExtractByte()
		if !ok {
			return nil, wireErr(Truncated, "uint8 value")
		}
		return Uint8(b), nil
	case TagChar:
		b, ok := s.ExtractByte()
		if !ok {
			return nil, wireErr(Truncated, "char value")
		}
		return Char(b), nil
	case TagInt16:
		v, err := readU16(s)
		if err != nil {
			return nil, err
		}
		return Int16(v), nil
	case TagUint16:
		v, err := readU16(s)
		if err != nil {
			return nil, err
		}
		return Uint16(v), nil
	case TagInt32:
		v, err := readU32(s)
		if err != nil {
			return nil, err
		}
		return Int32(v), nil
	case TagUint32:
		v, err := readU32(s)
		if err != nil {
			return nil, err
		}
		return Uint32(v), nil
	case TagString:
		v, err := readString(s)
		if err != nil {
			return nil, err
		}
		return String(v), nil
	case TagObject:
		return readObj(s)
	case TagList:
		return readList(s)
	}
	return nil, wireErr(BadType, "unknown type tag 0x%02x", byte(tag))
}

func readList(s *Bytestream) (*List, error) {
	elem, ok := s.ExtractByte()
	if !ok {
		return nil, wireErr(Truncated, "list element tag")
	}
	if !Tag(elem).valid() {
		return nil, wireErr(BadType, "unknown list element tag 0x%02x", elem)
	}
	count, err := readU32(s)
	if err != nil {
		return nil, err
	}
	l := NewList(Tag(elem))
	for i := uint32(0); i < count; i++ {
		v, err := readValue(Tag(elem), s)
		if err != nil {
			return nil, err
		}
		l.Append(v)
	}
	return l, nil
}
