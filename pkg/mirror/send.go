package mirror

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/mirror/pkg/errors"
)

// An EventSource yields root-relative paths of changed files in the order
// the changes occurred.
type EventSource interface {
	Next() (string, error)
}

// Send mirrors changes reported by events onto w, one record per change.
// It runs until the event source ends or the transport fails.
func Send(w io.Writer, root string, events EventSource) error {
	for {
		relPath, err := events.Next()
		if err != nil {
			return errors.WithContext(err, "next change")
		}

		log.WithField("path", relPath).Debug("Mirroring change")
		if err := WriteFile(w, root, relPath); err != nil {
			return errors.WithContext(err, fmt.Sprintf("mirror %q", relPath))
		}
	}
}
