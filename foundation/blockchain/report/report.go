// Package report writes the mined block in the line oriented output format.
// The first line is the header, the second line is the coinbase, and every
// line after that is the id of an accepted transaction in block order.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
)

// Encode returns the report for the specified block. Lines are separated by
// a single newline and there is no trailing newline.
func Encode(b database.Block) ([]byte, error) {
	header, err := b.Header.Encode()
	if err != nil {
		return nil, err
	}

	if !b.Coinbase.IsCoinbase() {
		return nil, &database.EncodingError{Kind: "coinbase", Err: errors.New("coinbase must have no inputs and one output")}
	}

	coinbase, err := b.Coinbase.Encode()
	if err != nil {
		return nil, err
	}

	lines := make([][]byte, 0, len(b.Trans)+2)
	lines = append(lines, header, coinbase)
	for _, tx := range b.Trans {
		if tx.TxID == "" {
			return nil, &database.EncodingError{Kind: "transaction", Err: errors.New("txid is empty")}
		}
		lines = append(lines, []byte(tx.TxID))
	}

	return bytes.Join(lines, []byte("\n")), nil
}

// Report is a decoded report.
type Report struct {
	Header   database.BlockHeader
	Coinbase database.Tx
	TxIDs    []string
}

// Decode parses a report back into its parts.
func Decode(data []byte) (Report, error) {
	lines := bytes.Split(data, []byte("\n"))
	if len(lines) < 2 {
		return Report{}, fmt.Errorf("report needs a header and a coinbase line, got %d lines", len(lines))
	}

	var r Report
	if err := json.Unmarshal(lines[0], &r.Header); err != nil {
		return Report{}, fmt.Errorf("decoding header: %w", err)
	}

	coinbase, err := database.DecodeTx(lines[1])
	if err != nil {
		return Report{}, fmt.Errorf("decoding coinbase: %w", err)
	}
	r.Coinbase = coinbase

	for i, line := range lines[2:] {
		if len(line) == 0 {
			return Report{}, fmt.Errorf("line %d: empty transaction id", i+3)
		}
		r.TxIDs = append(r.TxIDs, string(line))
	}

	return r, nil
}

// WriteFile encodes the block and stores it at the specified path. The data
// is written to a temporary file in the same folder and renamed into place
// so a reader never sees a partial report.
func WriteFile(path string, b database.Block) error {
	data, err := Encode(b)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// The temp file is gone after a successful rename so this only cleans
	// up on failure.
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing report: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}

	if err := os.Chmod(tmp, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publishing report: %w", err)
	}

	return nil
}
