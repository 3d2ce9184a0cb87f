package mirror

import (
	"fmt"
	"io"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/mirror/pkg/errors"
	"github.com/sidkik/mirror/pkg/wire"
)

var fs = afero.NewOsFs()

// Tombstone is the content-length sentinel meaning the file no longer
// exists and should be deleted at the destination.
const Tombstone = -1

// WriteFile writes one record for relPath under root onto w. If the file
// can't be opened it writes a tombstone instead. Directories produce no
// record; their contents arrive as records of their own and parents are
// recreated on demand at the destination.
func WriteFile(w io.Writer, root, relPath string) error {
	f, err := fs.Open(filepath.Join(root, relPath))
	if err != nil {
		return writeRecord(w, relPath, Tombstone, nil)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return writeRecord(w, relPath, Tombstone, nil)
	}
	if fi.IsDir() {
		return nil
	}

	return writeRecord(w, relPath, fi.Size(), f)
}

func writeRecord(w io.Writer, relPath string, size int64, contents io.Reader) error {
	if err := wire.WriteBlob(w, []byte(filepath.ToSlash(relPath))); err != nil {
		return errors.WithContext(err, "write path")
	}
	if err := wire.WriteInt(w, size); err != nil {
		return errors.WithContext(err, "write content length")
	}
	if contents == nil {
		return nil
	}

	// CopyN rather than Copy so that a file growing mid-transfer can't
	// overrun the announced frame length. A file shrinking mid-transfer
	// still fails the copy and with it the connection.
	if _, err := io.CopyN(w, contents, size); err != nil {
		return errors.WithContext(err, "write contents")
	}
	return nil
}

// applyRecord applies one record whose path blob has already been read.
func applyRecord(r wire.Reader, destRoot, wirePath string) error {
	// The path came off the wire; don't let it escape the destination root.
	dst, err := securejoin.SecureJoin(destRoot, filepath.FromSlash(wirePath))
	if err != nil {
		return errors.WithContext(err, "resolve destination")
	}

	size, err := wire.ReadInt(r)
	if err != nil {
		return errors.WithContext(err, "read content length")
	}

	if size == Tombstone {
		// RemoveAll rather than Remove so that deleting an already-absent
		// path, or a whole directory, isn't an error.
		if err := fs.RemoveAll(dst); err != nil {
			return errors.WithContext(err, "remove")
		}
		log.WithField("path", wirePath).Debug("Removed file")
		return nil
	}
	if size < 0 {
		return errors.New(fmt.Sprintf("invalid content length %d", size))
	}

	if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.WithContext(err, "make parent")
	}

	dstFile, err := fs.Create(dst)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer dstFile.Close()

	if _, err := io.CopyN(dstFile, r, size); err != nil {
		return errors.WithContext(err, "write contents")
	}
	log.WithField("path", wirePath).Debug("Wrote file")
	return nil
}
