package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/backkem/meshlight/pkg/packet"
	"github.com/backkem/meshlight/pkg/pairing"
	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, DefaultMeshName, c.Mesh.Name)
	assert.Equal(t, DefaultMeshPassword, c.Mesh.Password)
	assert.Equal(t, DefaultLogLevel, c.LogLevel)
	assert.NoError(t, c.Validate())
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
mesh:
  name: home
  password: s3cret
  ltk: 0123456789abcdef
device:
  address: A4:C1:38:01:02:03
  mesh_id: 3
log_level: debug
capture: /tmp/lamp.cbor
`))
	require.NoError(t, err)

	assert.Equal(t, "home", c.Mesh.Name)
	assert.Equal(t, "s3cret", c.Mesh.Password)
	assert.Equal(t, "0123456789abcdef", c.Mesh.LTK)
	assert.Equal(t, "A4:C1:38:01:02:03", c.Device.Address)
	assert.Equal(t, uint16(3), c.Device.MeshID)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "/tmp/lamp.cbor", c.Capture)
}

func TestParseKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte("device:\n  address: A4:C1:38:01:02:03\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultMeshName, c.Mesh.Name)
	assert.Equal(t, DefaultMeshPassword, c.Mesh.Password)
	assert.Equal(t, DefaultLogLevel, c.LogLevel)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		cause error
	}{
		{"bad address", "device:\n  address: nope\n", packet.ErrInvalidAddress},
		{"long name", "mesh:\n  name: a mesh name that is too long\n", pairing.ErrCredentialTooLong},
		{"long ltk", "mesh:\n  ltk: 0123456789abcdef0\n", pairing.ErrCredentialTooLong},
		{"bad level", "log_level: loud\n", nil},
		{"bad yaml", "mesh: [\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var le *LoadError
			assert.True(t, errors.As(err, &le))
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshlight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", c.LogLevel)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0o644))
	_, err = Load(path)
	require.True(t, errors.As(err, &le))
	assert.Equal(t, path, le.File)
	assert.Contains(t, err.Error(), path)
}

func TestMarshalRoundTrip(t *testing.T) {
	c := Default()
	c.Device.Address = "A4:C1:38:01:02:03"
	c.Device.MeshID = 12

	data, err := c.Marshal()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]logging.LogLevel{
		"disabled": logging.LogLevelDisabled,
		"error":    logging.LogLevelError,
		"WARN":     logging.LogLevelWarn,
		"info":     logging.LogLevelInfo,
		"":         logging.LogLevelInfo,
		"debug":    logging.LogLevelDebug,
		"trace":    logging.LogLevelTrace,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerFactory(t *testing.T) {
	c := Default()
	c.LogLevel = "debug"

	f, ok := c.LoggerFactory().(*logging.DefaultLoggerFactory)
	require.True(t, ok)
	assert.Equal(t, logging.LogLevelDebug, f.DefaultLogLevel)
	assert.NotNil(t, f.NewLogger("test"))
}
