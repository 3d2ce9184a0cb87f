package send

import (
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/mirror/cmd/util"
	"github.com/sidkik/mirror/pkg/errors"
	"github.com/sidkik/mirror/pkg/fswatch"
	"github.com/sidkik/mirror/pkg/mirror"
)

// reconnectDelay is how long we wait before redialing a lost connection.
const reconnectDelay = 5 * time.Second

// Variables mocked for unit testing.
var (
	clock clockwork.Clock = clockwork.NewRealClock()
	dial                  = net.Dial
)

// New creates a new `send` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "send ROOT ADDRESS",
		Short: "Watch a directory and mirror its changes to a remote host",
		Long: "Watch ROOT for file changes, and mirror each change to the\n" +
			"`mirror serve` process listening at ADDRESS.",
		Args: cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(args[0], args[1]); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(root, address string) error {
	watcher, err := fswatch.Watch(root)
	if err != nil {
		if dneErr, ok := errors.RootCause(err).(errors.FileNotFound); ok {
			return errors.NewFriendlyError(
				"Failed to watch files for mirroring.\n%q doesn't exist.",
				dneErr.Path)
		}
		return errors.WithContext(err, "watch files")
	}
	defer watcher.Close()

	log.WithField("root", watcher.Root()).Info("Watching for changes..")
	return sendLoop(address, watcher.Root(), watcher)
}

// sendLoop keeps one connection to the remote open, redialing whenever it
// drops. The watcher outlives individual connections, so changes that
// happen while disconnected are queued and mirrored on the next connection.
func sendLoop(address, root string, events mirror.EventSource) error {
	for {
		err := sendOnce(address, root, events)
		if _, ok := errors.RootCause(err).(fswatch.OutsideRootError); ok {
			// The watch itself is broken; a fresh connection can't fix it.
			return err
		}
		if errors.RootCause(err) == fswatch.ErrStopped {
			return nil
		}

		log.WithError(err).Errorf("Connection failed. Retrying in %s.", reconnectDelay)
		clock.Sleep(reconnectDelay)
	}
}

func sendOnce(address, root string, events mirror.EventSource) error {
	conn, err := dial("tcp", address)
	if err != nil {
		return errors.WithContext(err, "dial")
	}
	defer conn.Close()

	log.WithField("address", address).Info("Connected. Mirroring changes..")
	return mirror.Send(conn, root, events)
}
