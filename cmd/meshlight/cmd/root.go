package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/backkem/meshlight/pkg/config"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags and the configuration they
// resolve to.
type rootOptions struct {
	configPath   string
	meshName     string
	meshPassword string
	address      string
	meshID       uint16
	logLevel     string

	cfg *config.Config
}

// Execute runs the meshlight command line.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "meshlight",
		Short: "meshlight - Telink BLE mesh lamp protocol tool",
		Long: `meshlight builds and decodes Telink mesh packets, dumps traffic
captures and drives a simulated lamp over an in-memory link.

Settings come from an optional YAML file (--config) and may be
overridden with flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	pf.StringVarP(&opts.meshName, "name", "n", "", "Mesh name (default \"unpaired\")")
	pf.StringVarP(&opts.meshPassword, "password", "p", "", "Mesh password (default \"1234\")")
	pf.StringVarP(&opts.address, "address", "a", "", "Lamp hardware address, e.g. A4:C1:38:01:02:03")
	pf.Uint16Var(&opts.meshID, "mesh-id", 0, "Destination mesh id")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: disabled, error, warn, info, debug, trace")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newPairPacketCmd(opts),
		newSessionKeyCmd(opts),
		newEncodeCmd(opts),
		newDecodeCmd(opts),
		newCRC16Cmd(),
		newCaptureCmd(opts),
		newSimulateCmd(opts),
	)

	return rootCmd
}

// load builds the configuration from the config file and flag overrides.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Mesh.Name = o.meshName
	}
	if flags.Changed("password") {
		cfg.Mesh.Password = o.meshPassword
	}
	if flags.Changed("address") {
		cfg.Device.Address = o.address
	}
	if flags.Changed("mesh-id") {
		cfg.Device.MeshID = o.meshID
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// requireAddress returns the configured lamp address.
func (o *rootOptions) requireAddress() (string, error) {
	if o.cfg.Device.Address == "" {
		return "", fmt.Errorf("a lamp address is required (--address or device.address)")
	}
	return o.cfg.Device.Address, nil
}

// decodeHex parses s as hex, ignoring spaces and colons. A positive size
// requires exactly that many bytes.
func decodeHex(what, s string, size int) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if size > 0 && len(b) != size {
		return nil, fmt.Errorf("%s: got %d bytes, want %d", what, len(b), size)
	}
	return b, nil
}
