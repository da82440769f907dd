// Package bundle wraps file payloads in a small self-describing envelope so
// a receiver can restore the original filename and, when it pays off, ship
// the body zstd-compressed. The envelope is a magic prefix, a big-endian
// header length, a msgpack-encoded header and the body bytes. Payloads
// without the magic prefix pass through Unpack untouched, so plain text
// transmissions never need to know bundles exist.
package bundle

import (
	"bytes"
	"encoding/binary"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/datatone/tonewire/internal/errors"
)

// Magic identifies a bundle payload. Anything not starting with these four
// bytes is treated as raw data.
const Magic = "TWB1"

// headerLenSize is the fixed u16 that follows the magic and gives the
// msgpack header length in bytes.
const headerLenSize = 2

// Body encodings carried in the header.
const (
	EncodingRaw  = "raw"
	EncodingZstd = "zstd"
)

// maxHeaderSize bounds the declared header length so a corrupted frame
// cannot make Unpack allocate or scan past the payload.
const maxHeaderSize = 4096

// ErrCorrupt is returned when a payload carries the bundle magic but the
// envelope cannot be decoded.
var ErrCorrupt = errors.NewStd("corrupt bundle envelope")

// Header describes the bundled file. It travels msgpack-encoded between the
// magic and the body.
type Header struct {
	// Name is the base filename, never a path.
	Name string `msgpack:"name"`
	// Encoding is EncodingRaw or EncodingZstd.
	Encoding string `msgpack:"enc"`
	// Size is the uncompressed body length in bytes.
	Size int `msgpack:"size"`
}

// Pack builds a bundle payload for the given file body. The body is
// zstd-compressed when that actually shrinks it; otherwise it is carried
// raw. name is reduced to its base component so envelopes never leak local
// directory structure.
func Pack(name string, body []byte) ([]byte, error) {
	hdr := Header{
		Name:     filepath.Base(name),
		Encoding: EncodingRaw,
		Size:     len(body),
	}
	if hdr.Name == "." || hdr.Name == string(filepath.Separator) {
		return nil, errors.Newf("invalid bundle name %q", name).
			Component("bundle").
			Category(errors.CategoryValidation).
			Build()
	}

	out := body
	if compressed, ok := compress(body); ok {
		hdr.Encoding = EncodingZstd
		out = compressed
	}

	hdrBytes, err := msgpack.Marshal(&hdr)
	if err != nil {
		return nil, errors.New(err).
			Component("bundle").
			Category(errors.CategoryEncode).
			Context("operation", "marshal_header").
			Build()
	}
	if len(hdrBytes) > maxHeaderSize {
		return nil, errors.Newf("bundle header too large: %d bytes", len(hdrBytes)).
			Component("bundle").
			Category(errors.CategoryEncode).
			Build()
	}

	buf := make([]byte, 0, len(Magic)+headerLenSize+len(hdrBytes)+len(out))
	buf = append(buf, Magic...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(hdrBytes)))
	buf = append(buf, hdrBytes...)
	buf = append(buf, out...)
	return buf, nil
}

// Unpack inspects a received payload. For bundle payloads it returns the
// decoded header and the restored body with ok=true; anything without the
// magic prefix comes back as ok=false and a nil error so callers fall
// through to raw handling.
func Unpack(payload []byte) (Header, []byte, bool, error) {
	if !IsBundle(payload) {
		return Header{}, nil, false, nil
	}

	rest := payload[len(Magic):]
	if len(rest) < headerLenSize {
		return Header{}, nil, true, corruptErr("truncated before header length")
	}
	hdrLen := int(binary.BigEndian.Uint16(rest))
	rest = rest[headerLenSize:]
	if hdrLen > maxHeaderSize {
		return Header{}, nil, true, corruptErr("header length exceeds limit")
	}
	if len(rest) < hdrLen {
		return Header{}, nil, true, corruptErr("truncated inside header")
	}

	var hdr Header
	if err := msgpack.Unmarshal(rest[:hdrLen], &hdr); err != nil {
		return Header{}, nil, true, errors.New(errors.Join(ErrCorrupt, err)).
			Component("bundle").
			Category(errors.CategoryDecode).
			Context("operation", "unmarshal_header").
			Build()
	}
	body := rest[hdrLen:]

	switch hdr.Encoding {
	case EncodingRaw:
		if hdr.Size != len(body) {
			return Header{}, nil, true, corruptErr("body length mismatch")
		}
		return hdr, body, true, nil
	case EncodingZstd:
		plain, err := decompress(body, hdr.Size)
		if err != nil {
			return Header{}, nil, true, err
		}
		if hdr.Size != len(plain) {
			return Header{}, nil, true, corruptErr("decompressed length mismatch")
		}
		return hdr, plain, true, nil
	default:
		return Header{}, nil, true, corruptErr("unknown body encoding " + hdr.Encoding)
	}
}

// IsBundle reports whether a payload starts with the bundle magic.
func IsBundle(payload []byte) bool {
	return bytes.HasPrefix(payload, []byte(Magic))
}

// compress returns the zstd-compressed body and true only when compression
// saves space. Tiny or already-dense bodies stay raw.
func compress(body []byte) ([]byte, bool) {
	if len(body) == 0 {
		return nil, false
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, false
	}
	defer enc.Close()
	compressed := enc.EncodeAll(body, make([]byte, 0, len(body)))
	if len(compressed) >= len(body) {
		return nil, false
	}
	return compressed, true
}

func decompress(body []byte, size int) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.New(err).
			Component("bundle").
			Category(errors.CategoryDecode).
			Context("operation", "zstd_reader").
			Build()
	}
	defer dec.Close()
	capacity := size
	if capacity < 0 {
		capacity = 0
	}
	plain, err := dec.DecodeAll(body, make([]byte, 0, capacity))
	if err != nil {
		return nil, errors.New(errors.Join(ErrCorrupt, err)).
			Component("bundle").
			Category(errors.CategoryDecode).
			Context("operation", "zstd_decompress").
			Build()
	}
	return plain, nil
}

func corruptErr(detail string) error {
	return errors.New(ErrCorrupt).
		Component("bundle").
		Category(errors.CategoryDecode).
		Context("detail", detail).
		Build()
}
