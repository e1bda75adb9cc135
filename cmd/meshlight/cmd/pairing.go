package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/backkem/meshlight/pkg/pairing"
	"github.com/spf13/cobra"
)

func newPairPacketCmd(opts *rootOptions) *cobra.Command {
	var randomHex string

	cmd := &cobra.Command{
		Use:   "pair-packet",
		Short: "Build the pair request for the configured mesh credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			random := make([]byte, pairing.RandomSize)
			if randomHex != "" {
				b, err := decodeHex("random", randomHex, pairing.RandomSize)
				if err != nil {
					return err
				}
				random = b
			} else if _, err := rand.Read(random); err != nil {
				return fmt.Errorf("generate session random: %w", err)
			}

			pkt, err := pairing.MakePairPacket(opts.cfg.Mesh.Name, opts.cfg.Mesh.Password, random)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "random: %s\n", hex.EncodeToString(random))
			fmt.Fprintf(out, "packet: %s\n", hex.EncodeToString(pkt))
			return nil
		},
	}

	cmd.Flags().StringVarP(&randomHex, "random", "r", "", "Session random, 8 bytes hex (default: random)")
	return cmd
}

func newSessionKeyCmd(opts *rootOptions) *cobra.Command {
	var randomHex, responseHex string

	cmd := &cobra.Command{
		Use:   "session-key",
		Short: "Derive the session key from both pairing randoms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			random, err := decodeHex("random", randomHex, pairing.RandomSize)
			if err != nil {
				return err
			}
			response, err := decodeHex("response", responseHex, pairing.RandomSize)
			if err != nil {
				return err
			}

			key, err := pairing.MakeSessionKey(opts.cfg.Mesh.Name, opts.cfg.Mesh.Password, random, response)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key))
			return nil
		},
	}

	cmd.Flags().StringVarP(&randomHex, "random", "r", "", "Session random sent in the pair request (hex)")
	cmd.Flags().StringVar(&responseHex, "response", "", "Response random from the pair reply (hex)")
	cmd.MarkFlagRequired("random")
	cmd.MarkFlagRequired("response")
	return cmd
}
