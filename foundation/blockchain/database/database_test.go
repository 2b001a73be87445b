package database_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

func sampleTx() database.Tx {
	return database.Tx{
		TxID: "abc123",
		Inputs: []database.TxIn{
			{TxID: "prev", Vout: 1, PublicKey: "02aa", Message: "m<&>", Signature: "ff", Sequence: 4294967295},
		},
		Outputs: []database.TxOut{
			{Address: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", Value: 10},
			{Address: "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", Value: 20},
		},
	}
}

// =============================================================================

func Test_EncodeTx(t *testing.T) {
	t.Log("Given the need to canonically encode transactions.")
	{
		tx := sampleTx()

		first, err := tx.Encode()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode: %v", failed, err)
		}

		second, err := sampleTx().Encode()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode: %v", failed, err)
		}

		if !bytes.Equal(first, second) {
			t.Fatalf("\t%s\tShould get identical bytes for the same transaction.", failed)
		}
		t.Logf("\t%s\tShould get identical bytes for the same transaction.", success)

		const exp = `{"txid":"abc123","vin":[{"txid":"prev","vout":1,"is_coinbase":false,"publicKey":"02aa","message":"m<&>","signature":"ff","sequence":4294967295}],"vout":[{"scriptpubkey_address":"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa","value":10},{"scriptpubkey_address":"3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy","value":20}]}`
		if string(first) != exp {
			t.Logf("\t%s\tgot: %s", failed, first)
			t.Logf("\t%s\texp: %s", failed, exp)
			t.Fatalf("\t%s\tShould encode fields in the documented order.", failed)
		}
		t.Logf("\t%s\tShould encode fields in the documented order.", success)

		reordered := sampleTx()
		reordered.Outputs[0], reordered.Outputs[1] = reordered.Outputs[1], reordered.Outputs[0]

		third, err := reordered.Encode()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode: %v", failed, err)
		}

		if bytes.Equal(first, third) {
			t.Fatalf("\t%s\tShould get different bytes when outputs are reordered.", failed)
		}
		t.Logf("\t%s\tShould get different bytes when outputs are reordered.", success)
	}
}

func Test_EncodeCoinbase(t *testing.T) {
	cb := database.NewCoinbaseTx("00ff", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", 50)

	data, err := cb.Encode()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to encode coinbase: %v", failed, err)
	}

	const exp = `{"txid":"00ff","vin":[],"vout":[{"scriptpubkey_address":"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4","value":50}]}`
	if string(data) != exp {
		t.Logf("\t%s\tgot: %s", failed, data)
		t.Logf("\t%s\texp: %s", failed, exp)
		t.Fatalf("\t%s\tShould encode the coinbase with an empty input list.", failed)
	}
	t.Logf("\t%s\tShould encode the coinbase with an empty input list.", success)

	if !cb.IsCoinbase() {
		t.Fatalf("\t%s\tShould report the coinbase shape.", failed)
	}
}

func Test_EncodeErrors(t *testing.T) {
	type table struct {
		name   string
		encode func() ([]byte, error)
	}

	good := database.BlockHeader{Version: 1, PrevBlockHash: zeroHash, DifficultyTarget: zeroHash}

	tt := []table{
		{name: "emptytxid", encode: database.Tx{}.Encode},
		{name: "version", encode: func() ([]byte, error) {
			h := good
			h.Version = 0
			return h.Encode()
		}},
		{name: "shortprev", encode: func() ([]byte, error) {
			h := good
			h.PrevBlockHash = "00"
			return h.Encode()
		}},
		{name: "hextarget", encode: func() ([]byte, error) {
			h := good
			h.DifficultyTarget = "zz" + zeroHash[2:]
			return h.EncodeTemplate()
		}},
		{name: "coinbase", encode: database.Block{Header: good}.EncodeBody},
	}

	t.Log("Given the need to reject values that can't be encoded.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				_, err := tst.encode()

				var ee *database.EncodingError
				if !errors.As(err, &ee) {
					t.Fatalf("\t%s\tTest %d:\tShould get an encoding error, got %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould get an encoding error: %s", success, testID, ee)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_EncodeHeader(t *testing.T) {
	h := database.BlockHeader{
		Version:          1,
		PrevBlockHash:    zeroHash,
		TimeStamp:        1700000000,
		DifficultyTarget: "0000ffff00000000000000000000000000000000000000000000000000000000",
		Nonce:            42,
	}

	full, err := h.Encode()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to encode the header: %v", failed, err)
	}

	tmpl, err := h.EncodeTemplate()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to encode the header template: %v", failed, err)
	}

	const expTmpl = `{"version":1,"previousBlockHash":"0000000000000000000000000000000000000000000000000000000000000000","merkleRoot":"","timestamp":1700000000,"difficultyTarget":"0000ffff00000000000000000000000000000000000000000000000000000000"}`
	if string(tmpl) != expTmpl {
		t.Logf("\t%s\tgot: %s", failed, tmpl)
		t.Logf("\t%s\texp: %s", failed, expTmpl)
		t.Fatalf("\t%s\tShould encode the template without the nonce.", failed)
	}

	if !bytes.HasSuffix(full, []byte(`,"nonce":42}`)) {
		t.Fatalf("\t%s\tShould encode the nonce last: %s", failed, full)
	}
	t.Logf("\t%s\tShould encode the header with and without the nonce.", success)
}

func Test_DecodeTx(t *testing.T) {
	raw := []byte(`{"txid":"t1","vin":[{"is_coinbase":true,"publicKey":"p","message":"m","signature":"s"}],"vout":[{"scriptpubkey_address":"a","value":7}],"version":2}`)

	tx, err := database.DecodeTx(raw)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to decode a record: %v", failed, err)
	}

	if tx.TxID != "t1" || !tx.Inputs[0].IsCoinbase || tx.Outputs[0].Value != 7 {
		t.Fatalf("\t%s\tShould decode the record fields: %+v", failed, tx)
	}
	t.Logf("\t%s\tShould decode the record fields.", success)

	if _, err := database.DecodeTx([]byte(`{"txid":`)); err == nil {
		t.Fatalf("\t%s\tShould fail to decode a truncated record.", failed)
	}
	t.Logf("\t%s\tShould fail to decode a truncated record.", success)
}
