package serve

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeConnAppliesRecords(t *testing.T) {
	root := t.TempDir()
	client, server := net.Pipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveConn(server, root)
	}()

	_, err := client.Write([]byte("12:somepath.txt31:This is the content of the file"))
	require.NoError(t, err)
	require.NoError(t, client.Close())
	<-done

	got, err := os.ReadFile(filepath.Join(root, "somepath.txt"))
	require.NoError(t, err)
	assert.Equal(t, "This is the content of the file", string(got))
}

func TestServeConnRemovesTombstonedFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "somepath.txt")
	require.NoError(t, os.WriteFile(target, []byte("stale"), 0644))

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		serveConn(server, root)
	}()

	_, err := client.Write([]byte("12:somepath.txt-1:"))
	require.NoError(t, err)
	require.NoError(t, client.Close())
	<-done

	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}
