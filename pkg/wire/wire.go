/*
Package wire implements the framing used on a mirror connection.

There are two frame types. An integer frame is the decimal ASCII rendering
of a signed number terminated by a single ':' byte (e.g. `42:` or `-1:`).
A blob frame is an integer frame holding a length, followed by exactly that
many raw bytes with no terminator.

The decimal rendering costs a few bytes over a fixed-width binary integer,
but it's host-independent and trivial to eyeball in a packet capture.
*/
package wire

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sidkik/mirror/pkg/errors"
)

// Delim terminates every integer frame.
const Delim = ':'

// Reader is the stream interface consumed by the decoders. A *bufio.Reader
// satisfies it.
type Reader interface {
	io.Reader
	io.ByteReader
}

// ErrEndOfStream is returned when the stream ends before the first byte of
// a frame. At a record boundary this is how a peer signals a clean
// shutdown; anywhere else it's a fault.
var ErrEndOfStream = errors.New("stream ended before the start of a frame")

// ErrMissingColon is returned when the stream ends partway through an
// integer frame, before the ':' delimiter.
var ErrMissingColon = errors.New("stream ended before the ':' terminating an integer frame")

// InvalidByteError is returned when an integer frame contains a byte that
// is neither a decimal digit nor the delimiter. There's no way to find the
// next frame boundary after this, so the connection can't be salvaged.
type InvalidByteError struct {
	Byte byte
}

func (err InvalidByteError) Error() string {
	return fmt.Sprintf("invalid byte %q in integer frame", err.Byte)
}

// WriteInt writes i as an integer frame.
func WriteInt(w io.Writer, i int64) error {
	buf := strconv.AppendInt(make([]byte, 0, 21), i, 10)
	buf = append(buf, Delim)
	_, err := w.Write(buf)
	return err
}

// ReadInt reads one integer frame: an optional leading '-', then decimal
// digits up to the delimiter.
func ReadInt(r io.ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return 0, ErrEndOfStream
		}
		return 0, err
	}

	negative := b == '-'
	if negative {
		if b, err = r.ReadByte(); err != nil {
			if err == io.EOF {
				return 0, ErrMissingColon
			}
			return 0, err
		}
	}

	var total int64
	for {
		switch {
		case b >= '0' && b <= '9':
			total = total*10 + int64(b-'0')
		case b == Delim:
			if negative {
				total = -total
			}
			return total, nil
		default:
			return 0, InvalidByteError{Byte: b}
		}

		if b, err = r.ReadByte(); err != nil {
			if err == io.EOF {
				return 0, ErrMissingColon
			}
			return 0, err
		}
	}
}

// WriteBlob writes b as a blob frame: its length, then the bytes verbatim.
func WriteBlob(w io.Writer, b []byte) error {
	if err := WriteInt(w, int64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadBlob reads one blob frame. The stream closing before the announced
// length has arrived is an error.
func ReadBlob(r Reader) ([]byte, error) {
	size, err := ReadInt(r)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, errors.New(fmt.Sprintf("negative blob length %d", size))
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.WithContext(err, "read blob body")
	}
	return buf, nil
}
