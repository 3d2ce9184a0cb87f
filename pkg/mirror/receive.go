package mirror

import (
	"github.com/sidkik/mirror/pkg/errors"
	"github.com/sidkik/mirror/pkg/wire"
)

// Receive applies records from r to destRoot until the peer closes the
// connection. End-of-stream between records is a clean shutdown and
// returns nil; end-of-stream or a framing fault inside a record is an
// error, since the rest of the stream is then unparseable.
func Receive(r wire.Reader, destRoot string) error {
	for {
		pathBytes, err := wire.ReadBlob(r)
		if err != nil {
			if errors.RootCause(err) == wire.ErrEndOfStream {
				return nil
			}
			return errors.WithContext(err, "read path")
		}

		if err := applyRecord(r, destRoot, string(pathBytes)); err != nil {
			return err
		}
	}
}
