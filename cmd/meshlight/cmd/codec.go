package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/backkem/meshlight/pkg/crypto"
	"github.com/backkem/meshlight/pkg/packet"
	"github.com/spf13/cobra"
)

func newEncodeCmd(opts *rootOptions) *cobra.Command {
	var keyHex string

	cmd := &cobra.Command{
		Use:   "encode <opcode> [data]",
		Short: "Build an encrypted command packet",
		Long: `Build an encrypted command packet for the configured lamp.

The opcode is given by name, e.g. Power, Color or WhiteBrightness.
Data is up to 10 bytes of hex. The destination is --mesh-id.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := opts.requireAddress()
			if err != nil {
				return err
			}
			key, err := decodeHex("key", keyHex, crypto.KeySize)
			if err != nil {
				return err
			}
			op, err := packet.ParseOpcode(args[0])
			if err != nil {
				return err
			}

			var data []byte
			if len(args) == 2 {
				if data, err = decodeHex("data", args[1], 0); err != nil {
					return err
				}
			}

			pkt, err := packet.MakeCommandPacket(key, address, opts.cfg.Device.MeshID, op, data)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(pkt))
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyHex, "key", "k", "", "Session key (hex)")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newDecodeCmd(opts *rootOptions) *cobra.Command {
	var (
		keyHex  string
		command bool
	)

	cmd := &cobra.Command{
		Use:   "decode <packet>",
		Short: "Authenticate and decrypt a packet",
		Long: `Authenticate and decrypt a packet from the lamp and print its status.

With --command the packet is treated as a command written to the lamp.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := opts.requireAddress()
			if err != nil {
				return err
			}
			key, err := decodeHex("key", keyHex, crypto.KeySize)
			if err != nil {
				return err
			}
			pkt, err := decodeHex("packet", args[0], 0)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if command {
				c, err := packet.OpenCommandPacket(key, address, pkt)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "dest:   %d\n", c.DestID)
				fmt.Fprintf(out, "opcode: %s\n", c.Opcode)
				fmt.Fprintf(out, "data:   %s\n", hex.EncodeToString(c.Data))
				return nil
			}

			plain, err := packet.DecryptPacket(key, address, pkt)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "plaintext: %s\n", hex.EncodeToString(plain))

			status, err := packet.ParseStatus(plain)
			if errors.Is(err, packet.ErrUnknownStatus) {
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "status:    %s\n", status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyHex, "key", "k", "", "Session key (hex)")
	cmd.Flags().BoolVar(&command, "command", false, "Decode a command packet instead of a lamp packet")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newCRC16Cmd() *cobra.Command {
	var text bool

	cmd := &cobra.Command{
		Use:   "crc16 <data>",
		Short: "Compute the firmware CRC-16 of hex data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := []byte(args[0])
			if !text {
				var err error
				if data, err = decodeHex("data", args[0], 0); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "0x%04X\n", crypto.CRC16(data))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&text, "text", "t", false, "Treat the argument as text instead of hex")
	return cmd
}
