package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

func newEncodeCmd() *cobra.Command {
	var hash bool

	c := &cobra.Command{
		Use:   "encode [file]",
		Short: "Print the canonical encoding of a transaction read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error

			switch len(args) {
			case 0:
				data, err = io.ReadAll(cmd.InOrStdin())
			default:
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			tx, err := database.DecodeTx(data)
			if err != nil {
				return fmt.Errorf("decoding transaction: %w", err)
			}

			enc, err := tx.Encode()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, string(enc))

			if hash {
				h := signature.DoubleHash(enc)
				fmt.Fprintln(w, hex.EncodeToString(h[:]))
			}

			return nil
		},
	}

	c.Flags().BoolVar(&hash, "hash", false, "Also print the double sha256 of the encoding.")

	return c
}
