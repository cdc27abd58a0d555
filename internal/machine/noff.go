package machine

import (
	"encoding/binary"
	"fmt"
)

// NOFFMagic identifies a NachOS object file. A mismatch after a byte-swap
// attempt is a fatal programming error, not a recoverable one -- it means
// the caller handed Load something that isn't a NOFF image at all.
const NOFFMagic = 0xbadfad

// Segment is one of a NOFF header's four flat segment descriptors.
type Segment struct {
	VirtualAddr int32
	InFileAddr  int32
	Size        int32
}

// NOFFHeader is the on-disk, bit-exact layout of a NOFF executable's
// fixed header: a magic number followed by four segment descriptors, all
// little-endian.
type NOFFHeader struct {
	Magic         int32
	Code          Segment
	ReadonlyData  Segment
	InitData      Segment
	UninitData    Segment
}

const noffHeaderSize = 4 + 4*(3*4)

// DecodeNOFFHeader parses raw into a NOFFHeader, swapping every field if
// the magic number only matches after a byte swap (i.e. the image was
// produced on a machine of the opposite endianness). A magic that
// matches neither as-is nor swapped is a corrupt image.
func DecodeNOFFHeader(raw []byte) (NOFFHeader, error) {
	if len(raw) < noffHeaderSize {
		return NOFFHeader{}, fmt.Errorf("noff header truncated: got %d bytes, want %d", len(raw), noffHeaderSize)
	}

	h := decodeNOFFLittleEndian(raw)
	if h.Magic != NOFFMagic {
		swapped := decodeNOFFBigEndian(raw)
		if swapped.Magic != NOFFMagic {
			return NOFFHeader{}, fmt.Errorf("noff magic mismatch: got %#x", h.Magic)
		}
		h = swapped
	}
	return h, nil
}

func decodeNOFFLittleEndian(raw []byte) NOFFHeader {
	r := &fieldReader{buf: raw, order: binary.LittleEndian}
	return readNOFFFields(r)
}

func decodeNOFFBigEndian(raw []byte) NOFFHeader {
	r := &fieldReader{buf: raw, order: binary.BigEndian}
	return readNOFFFields(r)
}

type fieldReader struct {
	buf   []byte
	order binary.ByteOrder
	pos   int
}

func (r *fieldReader) int32() int32 {
	v := int32(r.order.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v
}

func (r *fieldReader) segment() Segment {
	return Segment{
		VirtualAddr: r.int32(),
		InFileAddr:  r.int32(),
		Size:        r.int32(),
	}
}

func readNOFFFields(r *fieldReader) NOFFHeader {
	return NOFFHeader{
		Magic:        r.int32(),
		Code:         r.segment(),
		ReadonlyData: r.segment(),
		InitData:     r.segment(),
		UninitData:   r.segment(),
	}
}
