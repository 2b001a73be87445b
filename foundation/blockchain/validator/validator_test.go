package validator_test

import (
	"encoding/hex"
	"testing"

	"github.com/ardanlabs/blockminer/foundation/blockchain/address"
	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/signature"
	"github.com/ardanlabs/blockminer/foundation/blockchain/validator"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	toAddr   = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
)

func signedInput(t *testing.T, message string) database.TxIn {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	pub, sig, err := signature.Sign(message, pk)
	if err != nil {
		t.Fatalf("Should be able to sign: %s", err)
	}

	return database.TxIn{TxID: "prev", PublicKey: pub, Message: message, Signature: sig}
}

func newValidator(t *testing.T, family string) *validator.Validator {
	addresses, err := address.Retrieve(family)
	if err != nil {
		t.Fatalf("Should be able to retrieve address family: %s", err)
	}

	v, err := validator.New(validator.Config{
		Verifier:  signature.Secp256k1{},
		Addresses: addresses,
	})
	if err != nil {
		t.Fatalf("Should be able to construct a validator: %s", err)
	}

	return v
}

// panicVerifier simulates a crypto primitive that blows up.
type panicVerifier struct{}

func (panicVerifier) Verify(string, string, string) bool {
	panic("boom")
}

// =============================================================================

func TestValidate(t *testing.T) {
	in := signedInput(t, "spend 10")

	tampered := in
	sig, _ := hex.DecodeString(in.Signature)
	sig[10] ^= 0xff
	tampered.Signature = hex.EncodeToString(sig)

	coinbaseIn := in
	coinbaseIn.IsCoinbase = true

	noKey := in
	noKey.PublicKey = ""

	good := []database.TxOut{{Address: toAddr, Value: 10}}

	type table struct {
		name   string
		tx     database.Tx
		reason validator.Reason
		input  int
		output int
	}

	tt := []table{
		{name: "valid", tx: database.Tx{TxID: "t", Inputs: []database.TxIn{in}, Outputs: good}, reason: validator.ReasonNone, input: -1, output: -1},
		{name: "noinputs", tx: database.Tx{TxID: "t", Inputs: []database.TxIn{}, Outputs: good}, reason: validator.ReasonStructure, input: -1, output: -1},
		{name: "niloutputs", tx: database.Tx{TxID: "t", Inputs: []database.TxIn{in}}, reason: validator.ReasonStructure, input: -1, output: -1},
		{name: "noid", tx: database.Tx{Inputs: []database.TxIn{in}, Outputs: good}, reason: validator.ReasonStructure, input: -1, output: -1},
		{name: "tampered", tx: database.Tx{TxID: "t", Inputs: []database.TxIn{in, tampered}, Outputs: good}, reason: validator.ReasonSignature, input: 1, output: -1},
		{name: "nokey", tx: database.Tx{TxID: "t", Inputs: []database.TxIn{noKey}, Outputs: good}, reason: validator.ReasonSignature, input: 0, output: -1},
		{name: "coinbase", tx: database.Tx{TxID: "t", Inputs: []database.TxIn{coinbaseIn}, Outputs: good}, reason: validator.ReasonSpend, input: 0, output: -1},
		{name: "zero", tx: database.Tx{TxID: "t", Inputs: []database.TxIn{in}, Outputs: []database.TxOut{{Address: toAddr, Value: 10}, {Address: toAddr, Value: 0}}}, reason: validator.ReasonValue, input: -1, output: 1},
		{name: "negative", tx: database.Tx{TxID: "t", Inputs: []database.TxIn{in}, Outputs: []database.TxOut{{Address: toAddr, Value: -5}}}, reason: validator.ReasonValue, input: -1, output: 0},
		{name: "address", tx: database.Tx{TxID: "t", Inputs: []database.TxIn{in}, Outputs: []database.TxOut{{Address: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", Value: 1}}}, reason: validator.ReasonAddress, input: -1, output: 0},
	}

	v := newValidator(t, address.FamilyLegacy)

	t.Log("Given the need to validate transactions.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				res := v.Validate(tst.tx)

				if res.Reason != tst.reason {
					t.Logf("\t%s\tTest %d:\tgot: %q %s", failed, testID, res.Reason, res.Detail)
					t.Logf("\t%s\tTest %d:\texp: %q", failed, testID, tst.reason)
					t.Fatalf("\t%s\tTest %d:\tShould get back the right reason.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the right reason: %s", success, testID, res)

				if res.Input != tst.input || res.Output != tst.output {
					t.Fatalf("\t%s\tTest %d:\tShould identify the element, got in[%d] out[%d].", failed, testID, res.Input, res.Output)
				}
				t.Logf("\t%s\tTest %d:\tShould identify the element.", success, testID)

				if res.Accepted() != (tst.reason == validator.ReasonNone) {
					t.Fatalf("\t%s\tTest %d:\tShould report acceptance consistently.", failed, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func TestValidateStructureDetail(t *testing.T) {
	v := newValidator(t, address.FamilyLegacy)

	res := v.Validate(database.Tx{TxID: "t"})
	if res.Reason != validator.ReasonStructure {
		t.Fatalf("\t%s\tShould reject on structure, got %q.", failed, res.Reason)
	}

	const exp = "vin is a required field; vout is a required field"
	if res.Detail != exp {
		t.Logf("\t%s\tgot: %s", failed, res.Detail)
		t.Logf("\t%s\texp: %s", failed, exp)
		t.Fatalf("\t%s\tShould translate the structural errors.", failed)
	}
	t.Logf("\t%s\tShould translate the structural errors.", success)
}

func TestValidateFailsClosed(t *testing.T) {
	addresses, _ := address.Retrieve(address.FamilyLegacy)

	v, err := validator.New(validator.Config{Verifier: panicVerifier{}, Addresses: addresses})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a validator: %s", failed, err)
	}

	tx := database.Tx{
		TxID:    "t",
		Inputs:  []database.TxIn{{PublicKey: "p", Message: "m", Signature: "s"}},
		Outputs: []database.TxOut{{Address: toAddr, Value: 1}},
	}

	if res := v.Validate(tx); res.Reason != validator.ReasonSignature {
		t.Fatalf("\t%s\tShould reject when the verifier panics, got %q.", failed, res.Reason)
	}
	t.Logf("\t%s\tShould reject when the verifier panics.", success)
}

func TestValidateBech32Family(t *testing.T) {
	v := newValidator(t, address.FamilyBech32)

	tx := database.Tx{
		TxID:    "t",
		Inputs:  []database.TxIn{signedInput(t, "segwit")},
		Outputs: []database.TxOut{{Address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", Value: 3}},
	}

	if res := v.Validate(tx); !res.Accepted() {
		t.Fatalf("\t%s\tShould accept a bech32 output: %s", failed, res)
	}

	tx.Outputs[0].Address = toAddr
	if res := v.Validate(tx); res.Reason != validator.ReasonAddress {
		t.Fatalf("\t%s\tShould reject a legacy output under bech32: %s", failed, res)
	}
	t.Logf("\t%s\tShould apply only the configured address family.", success)
}

func TestNewRequiresCapabilities(t *testing.T) {
	if _, err := validator.New(validator.Config{}); err == nil {
		t.Fatalf("\t%s\tShould require a verifier and address family.", failed)
	}
	t.Logf("\t%s\tShould require a verifier and address family.", success)
}
