package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ardanlabs/blockminer/business/core/miner"
	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/mempool"
	"github.com/ardanlabs/blockminer/foundation/blockchain/pow"
	"github.com/ardanlabs/blockminer/foundation/blockchain/report"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	var (
		reportPath string
		mempoolDir string
	)

	c := &cobra.Command{
		Use:   "verify",
		Short: "Rebuild a reported block from the mempool folder and check its proof of work",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(reportPath)
			if err != nil {
				return err
			}

			r, err := report.Decode(data)
			if err != nil {
				return err
			}

			b, err := rebuild(cmd.Context(), r, mempoolDir)
			if err != nil {
				return err
			}

			d, err := pow.Verify(b)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "valid block %s nonce %d trans %d\n", d, b.Header.Nonce, len(b.Trans))

			return nil
		},
	}

	c.Flags().StringVarP(&reportPath, "report", "r", "output.txt", "Path to the block report.")
	c.Flags().StringVarP(&mempoolDir, "mempool", "m", "mempool", "Path to the mempool folder the block was mined from.")

	return c
}

// rebuild looks up every reported transaction id in the mempool folder.
func rebuild(ctx context.Context, r report.Report, dir string) (database.Block, error) {
	src, err := miner.NewSource(dir)
	if err != nil {
		return database.Block{}, err
	}

	handles, err := src.List(ctx)
	if err != nil {
		return database.Block{}, err
	}

	byID := make(map[string]database.Tx)
	for _, handle := range handles {
		tx, err := mempool.ReadTx(ctx, src, handle)
		if err != nil {
			continue
		}

		if _, exists := byID[tx.TxID]; !exists {
			byID[tx.TxID] = tx
		}
	}

	b := database.Block{
		Header:   r.Header,
		Coinbase: r.Coinbase,
	}

	for _, id := range r.TxIDs {
		tx, exists := byID[id]
		if !exists {
			return database.Block{}, fmt.Errorf("transaction %s is not in the mempool", id)
		}
		b.Trans = append(b.Trans, tx)
	}

	return b, nil
}
