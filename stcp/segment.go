package stcp

import (
	"strconv"
	"time"
)

// Flags is the subset of TCP control bits this transport understands.
type Flags uint8

const (
	FlagFIN Flags = 1 << iota
	FlagSYN
	FlagACK
)

func (f Flags) Has(mask Flags) bool { return f&mask == mask }
func (f Flags) Any(mask Flags) bool { return f&mask != 0 }

func (f Flags) String() string {
	if f == 0 {
		return "[]"
	}
	b := make([]byte, 0, 16)
	b = append(b, '[')
	first := true
	add := func(name string) {
		if !first {
			b = append(b, ',')
		}
		first = false
		b = append(b, name...)
	}
	if f.Has(FlagSYN) {
		add("SYN")
	}
	if f.Has(FlagACK) {
		add("ACK")
	}
	if f.Has(FlagFIN) {
		add("FIN")
	}
	b = append(b, ']')
	return string(b)
}

// Segment is a value representing one in-flight or received STCP segment,
// per spec section 3. Payload is owned by the segment once constructed;
// callers must not mutate it after handing it to a queue.
type Segment struct {
	Seq     Value
	Ack     Value
	Flags   Flags
	Payload []byte

	// Retransmit bookkeeping, meaningful only for segments living in the
	// send queue.
	sentAt  time.Time
	txCount int
}

// DataLen returns the number of payload octets, excluding SYN/FIN.
func (s *Segment) DataLen() Size { return Size(len(s.Payload)) }

// LogicalLen returns payload length plus one for SYN plus one for FIN, per
// the GLOSSARY definition: each control flag consumes one sequence number.
func (s *Segment) LogicalLen() Size {
	n := s.DataLen()
	if s.Flags.Has(FlagSYN) {
		n++
	}
	if s.Flags.Has(FlagFIN) {
		n++
	}
	return n
}

// End returns the sequence number one past the last octet the segment
// occupies, i.e. Add(Seq, LogicalLen()). This is "logical end-sequence" in
// spec section 3.
func (s *Segment) End() Value { return Add(s.Seq, s.LogicalLen()) }

func (s *Segment) String() string {
	return "<seq=" + strconv.FormatUint(uint64(s.Seq), 10) +
		" ack=" + strconv.FormatUint(uint64(s.Ack), 10) +
		" len=" + strconv.FormatUint(uint64(s.DataLen()), 10) +
		" " + s.Flags.String() + ">"
}
