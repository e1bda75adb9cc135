package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/backkem/meshlight/pkg/capture"
	"github.com/backkem/meshlight/pkg/crypto"
	"github.com/backkem/meshlight/pkg/gatt"
	"github.com/backkem/meshlight/pkg/packet"
	"github.com/spf13/cobra"
)

func newCaptureCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Work with traffic capture files",
	}
	cmd.AddCommand(newCaptureDumpCmd(opts))
	return cmd
}

func newCaptureDumpCmd(opts *rootOptions) *cobra.Command {
	var (
		keyHex         string
		direction      string
		characteristic string
		session        string
	)

	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print the records of a capture file",
		Long: `Print the records of a capture file.

With --key, command and status packets are decoded using the capture's
lamp address.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := capture.Filter{SessionID: session}

			switch strings.ToLower(direction) {
			case "":
			case "in":
				d := capture.DirectionIn
				filter.Direction = &d
			case "out":
				d := capture.DirectionOut
				filter.Direction = &d
			default:
				return fmt.Errorf("unknown direction %q", direction)
			}

			if characteristic != "" {
				c, err := parseCharacteristic(characteristic)
				if err != nil {
					return err
				}
				filter.Characteristic = c
			}

			var key []byte
			if keyHex != "" {
				var err error
				if key, err = decodeHex("key", keyHex, crypto.KeySize); err != nil {
					return err
				}
			}

			r, err := capture.Open(args[0], filter)
			if err != nil {
				return err
			}
			defer r.Close()

			return dumpRecords(cmd.OutOrStdout(), r, key, opts.cfg.Device.Address)
		},
	}

	cmd.Flags().StringVarP(&keyHex, "key", "k", "", "Session key used to decode packets (hex)")
	cmd.Flags().StringVar(&direction, "direction", "", "Only show records in this direction: in, out")
	cmd.Flags().StringVar(&characteristic, "characteristic", "", "Only show one characteristic: status, command, ota, pair")
	cmd.Flags().StringVar(&session, "session", "", "Only show records of this session id")
	return cmd
}

func dumpRecords(out io.Writer, r *capture.Reader, key []byte, fallbackAddress string) error {
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s %-3s %-7s % x\n",
			rec.Timestamp.Format(time.RFC3339Nano), rec.Direction, rec.Characteristic, rec.Data)

		if key == nil {
			continue
		}
		address := rec.Address
		if address == "" {
			address = fallbackAddress
		}
		if line := describe(rec, key, address); line != "" {
			fmt.Fprintf(out, "    %s\n", line)
		}
	}
}

// describe decodes a command or status record. Undecodable records yield
// the reason.
func describe(rec capture.Record, key []byte, address string) string {
	switch {
	case rec.Characteristic == gatt.Command && rec.Direction == capture.DirectionOut:
		c, err := packet.OpenCommandPacket(key, address, rec.Data)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s to %d: % x", c.Opcode, c.DestID, c.Data)

	case rec.Characteristic == gatt.Status && rec.Direction == capture.DirectionIn:
		plain, err := packet.DecryptPacket(key, address, rec.Data)
		if err != nil {
			return err.Error()
		}
		s, err := packet.ParseStatus(plain)
		if err != nil {
			return err.Error()
		}
		return s.String()
	}
	return ""
}

func parseCharacteristic(name string) (gatt.Characteristic, error) {
	for _, c := range []gatt.Characteristic{gatt.Status, gatt.Command, gatt.OTA, gatt.Pair} {
		if strings.EqualFold(c.String(), name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown characteristic %q", name)
}
