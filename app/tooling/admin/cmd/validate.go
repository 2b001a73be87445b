package cmd

import (
	"fmt"

	"github.com/ardanlabs/blockminer/business/core/miner"
	"github.com/ardanlabs/blockminer/foundation/blockchain/address"
	"github.com/ardanlabs/blockminer/foundation/blockchain/pipeline"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var (
		mempoolDir string
		family     string
		workers    int
	)

	c := &cobra.Command{
		Use:   "validate",
		Short: "Validate a mempool folder and list why transactions are rejected",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := miner.NewValidator(family)
			if err != nil {
				return err
			}

			src, err := miner.NewSource(mempoolDir)
			if err != nil {
				return err
			}

			pl, err := pipeline.New(pipeline.Config{Validator: v, Workers: workers})
			if err != nil {
				return err
			}

			out, err := pl.Run(cmd.Context(), src)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, pf := range out.ParseFailures {
				fmt.Fprintf(w, "unparsable %s\n", pf)
			}
			for _, res := range out.Rejected {
				fmt.Fprintf(w, "rejected %s\n", res)
			}
			for _, tx := range out.Accepted {
				fmt.Fprintf(w, "accepted %s\n", tx.TxID)
			}
			fmt.Fprintf(w, "total %d accepted %d rejected %d unparsable %d\n", out.Total, len(out.Accepted), len(out.Rejected), len(out.ParseFailures))

			return nil
		},
	}

	c.Flags().StringVarP(&mempoolDir, "mempool", "m", "mempool", "Path to the mempool folder.")
	c.Flags().StringVarP(&family, "family", "f", address.FamilyLegacy, "Address family to accept.")
	c.Flags().IntVarP(&workers, "workers", "w", 0, "Number of validation workers, 0 uses every cpu.")

	return c
}
