package native

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

// Persisted index layout (little endian):
//
//	magic [4]byte | version u16 | compression u8 | reserved u8 |
//	dim u32 | m u32 | count u64 | rawSize u64 | payloadSize u64 | crc32 u32 |
//	spaceLen u16 | space [spaceLen]byte | payload [payloadSize]byte
//
// The payload is the graph codec output, compressed as recorded. The
// checksum covers every header byte except itself, followed by the payload.
const (
	formatVersion uint16 = 2

	offCompression = 6
	offDim         = 8
	offM           = 12
	offCount       = 16
	offRawSize     = 24
	offPayloadSize = 32
	offChecksum    = 40
	offSpaceLen    = 44

	fixedHeaderSize = 46
	maxSpaceNameLen = 255
)

// Bounds on what a header may claim before anything is allocated for it.
const (
	maxRawSize = 1 << 40
	// lz4 block format cannot expand a literal run by more than 255x.
	lz4MaxRatio = 255
	// A zstd block decodes to at most 128 KiB and is never smaller than a
	// 3 byte header plus one RLE byte.
	zstdMaxRatio = 1 << 15
)

var formatMagic = [4]byte{'K', 'N', 'N', 'B'}

var (
	errBadMagic   = errors.New("not a knn index file")
	errBadVersion = errors.New("unsupported index file version")
	errChecksum   = errors.New("index checksum mismatch")
	errTruncated  = errors.New("index file truncated")
	errCorrupt    = errors.New("index header is inconsistent")
)

type fileHeader struct {
	Compression Compression
	Dim         uint32
	M           uint32
	Count       uint64
	RawSize     uint64
	PayloadSize uint64
	Checksum    uint32
	Space       string

	raw []byte
}

// encode serializes h for payload and records the checksum in h.
func (h *fileHeader) encode(payload []byte) []byte {
	buf := make([]byte, fixedHeaderSize+len(h.Space))
	copy(buf[0:4], formatMagic[:])
	binary.LittleEndian.PutUint16(buf[4:], formatVersion)
	buf[offCompression] = byte(h.Compression)
	binary.LittleEndian.PutUint32(buf[offDim:], h.Dim)
	binary.LittleEndian.PutUint32(buf[offM:], h.M)
	binary.LittleEndian.PutUint64(buf[offCount:], h.Count)
	binary.LittleEndian.PutUint64(buf[offRawSize:], h.RawSize)
	binary.LittleEndian.PutUint64(buf[offPayloadSize:], h.PayloadSize)
	binary.LittleEndian.PutUint16(buf[offSpaceLen:], uint16(len(h.Space)))
	copy(buf[fixedHeaderSize:], h.Space)

	h.Checksum = checksum(buf, payload)
	binary.LittleEndian.PutUint32(buf[offChecksum:], h.Checksum)
	h.raw = buf
	return buf
}

func checksum(header, payload []byte) uint32 {
	sum := crc32.ChecksumIEEE(header[:offChecksum])
	sum = crc32.Update(sum, crc32.IEEETable, header[offSpaceLen:])
	return crc32.Update(sum, crc32.IEEETable, payload)
}

func readHeader(r io.Reader) (*fileHeader, error) {
	fixed := make([]byte, fixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errTruncated
		}
		return nil, err
	}
	if [4]byte(fixed[0:4]) != formatMagic {
		return nil, errBadMagic
	}
	if binary.LittleEndian.Uint16(fixed[4:]) != formatVersion {
		return nil, errBadVersion
	}

	h := &fileHeader{
		Compression: Compression(fixed[offCompression]),
		Dim:         binary.LittleEndian.Uint32(fixed[offDim:]),
		M:           binary.LittleEndian.Uint32(fixed[offM:]),
		Count:       binary.LittleEndian.Uint64(fixed[offCount:]),
		RawSize:     binary.LittleEndian.Uint64(fixed[offRawSize:]),
		PayloadSize: binary.LittleEndian.Uint64(fixed[offPayloadSize:]),
		Checksum:    binary.LittleEndian.Uint32(fixed[offChecksum:]),
	}

	spaceLen := int(binary.LittleEndian.Uint16(fixed[offSpaceLen:]))
	if spaceLen > maxSpaceNameLen {
		return nil, errCorrupt
	}
	space := make([]byte, spaceLen)
	if _, err := io.ReadFull(r, space); err != nil {
		return nil, errTruncated
	}
	h.Space = string(space)
	h.raw = append(fixed, space...)
	return h, nil
}

// validate rejects headers whose sizes cannot describe a graph the codec
// produced. It runs before anything is allocated from header values.
func (h *fileHeader) validate() error {
	if h.RawSize > maxRawSize || h.PayloadSize > maxRawSize {
		return errCorrupt
	}

	switch h.Compression {
	case CompressionNone:
		if h.RawSize != h.PayloadSize {
			return errCorrupt
		}
	case CompressionLZ4:
		if h.RawSize > h.PayloadSize*lz4MaxRatio {
			return errCorrupt
		}
	case CompressionZSTD:
		if h.RawSize > h.PayloadSize*zstdMaxRatio {
			return errCorrupt
		}
	default:
		return errCorrupt
	}

	if h.Count == 0 {
		if h.RawSize != 0 {
			return errCorrupt
		}
		return nil
	}
	// Every exported node carries its vector.
	if h.Dim == 0 || h.M == 0 || h.Count > h.RawSize/(uint64(h.Dim)*float32Size) {
		return errCorrupt
	}
	return nil
}

// readPayload reads the stored payload and verifies the checksum. The
// buffer grows with the bytes actually read, not with PayloadSize.
func readPayload(r io.Reader, h *fileHeader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, r, int64(h.PayloadSize))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if uint64(n) != h.PayloadSize {
		return nil, errTruncated
	}
	payload := buf.Bytes()
	if checksum(h.raw, payload) != h.Checksum {
		return nil, errChecksum
	}
	return payload, nil
}
