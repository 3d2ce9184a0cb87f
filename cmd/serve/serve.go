package serve

import (
	"bufio"
	"net"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/mirror/cmd/util"
	"github.com/sidkik/mirror/pkg/errors"
	"github.com/sidkik/mirror/pkg/mirror"
)

// New creates a new `serve` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "serve ROOT ADDRESS",
		Short: "Receive mirrored file changes into a directory",
		Long: "Listen on ADDRESS for a `mirror send` peer and apply each\n" +
			"mirrored change under ROOT.",
		Args: cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(args[0], args[1]); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(root, address string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return errors.WithContext(err, "make root")
	}

	lis, err := net.Listen("tcp", address)
	if err != nil {
		return errors.WithContext(err, "listen")
	}
	defer lis.Close()

	log.WithField("address", lis.Addr().String()).Info("Ready to mirror changes..")
	for {
		conn, err := lis.Accept()
		if err != nil {
			return errors.WithContext(err, "accept")
		}
		serveConn(conn, root)
	}
}

// serveConn applies one peer's records until it disconnects. Connections
// are handled one at a time so that records from different peers can't
// interleave within the root.
func serveConn(conn net.Conn, root string) {
	defer conn.Close()

	log.WithField("peer", conn.RemoteAddr().String()).Info("Peer connected")
	if err := mirror.Receive(bufio.NewReader(conn), root); err != nil {
		log.WithError(err).Error("Connection failed")
		return
	}
	log.Info("Peer disconnected")
}
