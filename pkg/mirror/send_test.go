package mirror

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/mirror/pkg/errors"
)

// stubSource yields a fixed list of paths, then fails with err.
type stubSource struct {
	paths []string
	err   error
}

func (s *stubSource) Next() (string, error) {
	if len(s.paths) == 0 {
		return "", s.err
	}
	path := s.paths[0]
	s.paths = s.paths[1:]
	return path, nil
}

func TestSendMirrorsEachChange(t *testing.T) {
	fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.txt", []byte("first"), 0644))

	stop := errors.New("source exhausted")
	events := &stubSource{
		// sub/b.txt was deleted again before the sender could read it, so
		// its event turns into a tombstone.
		paths: []string{"a.txt", "sub/b.txt"},
		err:   stop,
	}

	var buf bytes.Buffer
	err := Send(&buf, "/src", events)
	assert.Equal(t, stop, errors.RootCause(err))

	require.NoError(t, receive(t, &buf, "/dst"))

	got, err := afero.ReadFile(fs, "/dst/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	exists, err := afero.Exists(fs, "/dst/sub/b.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSendStreamsInOrder(t *testing.T) {
	fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a", []byte("one"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/src/b", []byte("two"), 0644))

	stop := errors.New("source exhausted")
	events := &stubSource{paths: []string{"a", "b"}, err: stop}

	var buf bytes.Buffer
	err := Send(&buf, "/src", events)
	assert.Equal(t, stop, errors.RootCause(err))
	assert.Equal(t, "1:a3:one1:b3:two", buf.String())
}

func TestReceiveAppliesRecordsInOrder(t *testing.T) {
	fs = afero.NewMemMapFs()

	// Two writes to the same path: the later record wins.
	var buf bytes.Buffer
	buf.WriteString("1:a3:old")
	buf.WriteString("1:a3:new")
	require.NoError(t, Receive(bufio.NewReader(&buf), "/dst"))

	got, err := afero.ReadFile(fs, "/dst/a")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}
