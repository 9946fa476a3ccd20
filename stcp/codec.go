package stcp

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed wire header size in bytes: seq(4) + ack(4) +
// data_offset/flags(2) + window(2). Unlike real TCP there are no options,
// so data_offset is always 3 (units of 4 bytes) and the header never grows.
const HeaderSize = 12

const dataOffsetWords = HeaderSize / 4

var (
	errShortHeader = errors.New("stcp: datagram shorter than header")
	errBadOffset   = errors.New("stcp: data_offset out of range")
)

// EncodeHeader packs seg's header fields into buf[:HeaderSize] per the
// bit-exact layout of spec section 6. window is always WindowSize; it is a
// parameter rather than a constant read off the Context so tests can probe
// nonstandard values.
func EncodeHeader(buf []byte, seg *Segment, window uint16) error {
	if len(buf) < HeaderSize {
		return errShortHeader
	}
	binary.BigEndian.PutUint32(buf[0:4], uint32(seg.Seq))
	binary.BigEndian.PutUint32(buf[4:8], uint32(seg.Ack))
	buf[8] = byte(dataOffsetWords << 4)
	buf[9] = byte(seg.Flags)
	binary.BigEndian.PutUint16(buf[10:12], window)
	return nil
}

// DecodeHeader parses a wire datagram into a Segment (without the
// retransmit bookkeeping fields, which are only meaningful on the send
// side). Payload aliases buf; callers must copy it before buf is reused.
func DecodeHeader(buf []byte) (seg Segment, window uint16, err error) {
	if len(buf) < HeaderSize {
		return Segment{}, 0, errShortHeader
	}
	offsetWords := buf[8] >> 4
	offset := int(offsetWords) * 4
	if offset < HeaderSize || offset > len(buf) {
		return Segment{}, 0, errBadOffset
	}
	seg.Seq = Value(binary.BigEndian.Uint32(buf[0:4]))
	seg.Ack = Value(binary.BigEndian.Uint32(buf[4:8]))
	seg.Flags = Flags(buf[9])
	window = binary.BigEndian.Uint16(buf[10:12])
	if offset < len(buf) {
		seg.Payload = buf[offset:]
	}
	return seg, window, nil
}
