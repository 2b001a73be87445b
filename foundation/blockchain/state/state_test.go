package state_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/blockminer/foundation/blockchain/address"
	"github.com/ardanlabs/blockminer/foundation/blockchain/assembler"
	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/mempool"
	"github.com/ardanlabs/blockminer/foundation/blockchain/pipeline"
	"github.com/ardanlabs/blockminer/foundation/blockchain/pow"
	"github.com/ardanlabs/blockminer/foundation/blockchain/signature"
	"github.com/ardanlabs/blockminer/foundation/blockchain/state"
	"github.com/ardanlabs/blockminer/foundation/blockchain/validator"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkHexKey   = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	toAddr     = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	rewardAddr = "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"
	easyTarget = "00ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
)

func ifErrFailNow(t *testing.T, err error) {
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func signedTx(t *testing.T, id string, value int64) database.Tx {
	pk, err := crypto.HexToECDSA(pkHexKey)
	ifErrFailNow(t, err)

	msg := fmt.Sprintf("pay %s %d", id, value)
	pub, sig, err := signature.Sign(msg, pk)
	ifErrFailNow(t, err)

	return database.Tx{
		TxID:    id,
		Inputs:  []database.TxIn{{TxID: "prev", PublicKey: pub, Message: msg, Signature: sig}},
		Outputs: []database.TxOut{{Address: toAddr, Value: value}},
	}
}

func add(t *testing.T, mp *mempool.Memory, handle string, tx database.Tx) {
	data, err := json.Marshal(tx)
	ifErrFailNow(t, err)

	_, err = mp.Upsert(handle, data)
	ifErrFailNow(t, err)
}

// mixedPool holds one zero value, one tampered, and one valid transaction.
func mixedPool(t *testing.T) *mempool.Memory {
	mp := mempool.NewMemory()

	tampered := signedTx(t, "tampered", 5)
	sig, err := hex.DecodeString(tampered.Inputs[0].Signature)
	ifErrFailNow(t, err)
	sig[10] ^= 0x80
	tampered.Inputs[0].Signature = hex.EncodeToString(sig)

	add(t, mp, "1.json", signedTx(t, "zero", 0))
	add(t, mp, "2.json", tampered)
	add(t, mp, "3.json", signedTx(t, "valid", 5))

	return mp
}

type options struct {
	reportPath string
	prune      bool
	chain      bool
	maxNonces  uint64
	target     string
}

func newState(t *testing.T, src mempool.Source, opts options) *state.State {
	addresses, err := address.Retrieve(address.FamilyLegacy)
	ifErrFailNow(t, err)

	v, err := validator.New(validator.Config{Verifier: signature.Secp256k1{}, Addresses: addresses})
	ifErrFailNow(t, err)

	pl, err := pipeline.New(pipeline.Config{Validator: v, Workers: 4, EvHandler: t.Logf})
	ifErrFailNow(t, err)

	target := opts.target
	if target == "" {
		target = easyTarget
	}

	asm, err := assembler.New(assembler.Config{
		DifficultyTarget: target,
		RewardAddress:    rewardAddr,
		RewardAmount:     625000000,
		Clock:            assembler.ClockFunc(func() time.Time { return time.Unix(1700000000, 0) }),
		CoinbaseID:       func() (string, error) { return "coinbase0001", nil },
	})
	ifErrFailNow(t, err)

	st, err := state.New(state.Config{
		Source:     src,
		Pipeline:   pl,
		Assembler:  asm,
		Engine:     pow.New(pow.Config{MaxNonces: opts.maxNonces, Workers: 2}),
		ReportPath: opts.reportPath,
		Prune:      opts.prune,
		Chain:      opts.chain,
		EvHandler:  t.Logf,
	})
	ifErrFailNow(t, err)

	return st
}

type brokenSource struct{}

func (brokenSource) List(context.Context) ([]string, error) {
	return nil, errors.New("permission denied")
}

func (brokenSource) Read(context.Context, string) ([]byte, error) {
	return nil, errors.New("permission denied")
}

// =============================================================================

func TestMineBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	t.Log("Given the need to mine a block from a mixed pool.")
	{
		st := newState(t, mixedPool(t), options{reportPath: path})

		res, err := st.MineBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine a block.", success)

		if len(res.Outcome.Accepted) != 1 || len(res.Outcome.Rejected) != 2 {
			t.Fatalf("\t%s\tShould accept exactly one transaction, got %+v", failed, res.Outcome)
		}
		t.Logf("\t%s\tShould accept exactly one transaction.", success)

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to read the report: %v", failed, err)
		}

		lines := strings.Split(string(data), "\n")
		if len(lines) != 3 || lines[2] != "valid" {
			t.Fatalf("\t%s\tShould list exactly one id after the coinbase, got %q", failed, lines)
		}
		t.Logf("\t%s\tShould list exactly one id after the coinbase.", success)

		if string(data) != string(res.Report) {
			t.Fatalf("\t%s\tShould store the same report that is returned.", failed)
		}
		t.Logf("\t%s\tShould store the same report that is returned.", success)

		if _, err := pow.Verify(res.Block); err != nil {
			t.Fatalf("\t%s\tShould produce a block that satisfies the target: %v", failed, err)
		}
		t.Logf("\t%s\tShould produce a block that satisfies the target.", success)

		latest, err := st.RetrieveLatest()
		if err != nil || latest.Digest != res.Digest || st.QueryMinedCount() != 1 {
			t.Fatalf("\t%s\tShould keep the latest block: %v", failed, err)
		}
		t.Logf("\t%s\tShould keep the latest block.", success)
	}
}

func TestMineEmptyPool(t *testing.T) {
	st := newState(t, mempool.NewMemory(), options{})

	if _, err := st.RetrieveLatest(); !errors.Is(err, state.ErrNoBlock) {
		t.Fatalf("\t%s\tShould have no block before mining, got %v", failed, err)
	}

	res, err := st.MineBlock(context.Background())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine an empty block: %v", failed, err)
	}

	lines := strings.Split(string(res.Report), "\n")
	if len(lines) != 2 {
		t.Fatalf("\t%s\tShould only have the header and coinbase lines, got %q", failed, lines)
	}
	t.Logf("\t%s\tShould only have the header and coinbase lines.", success)

	if res.Attempts == 0 {
		t.Fatalf("\t%s\tShould still perform the nonce search.", failed)
	}
	t.Logf("\t%s\tShould still perform the nonce search.", success)
}

func TestMineIdempotent(t *testing.T) {
	t.Log("Given the need to reproduce a block from the same inputs.")
	{
		first, err := newState(t, mixedPool(t), options{}).MineBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}

		second, err := newState(t, mixedPool(t), options{}).MineBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}

		if string(first.Report) != string(second.Report) {
			t.Logf("\t%s\tgot: %s", failed, second.Report)
			t.Logf("\t%s\texp: %s", failed, first.Report)
			t.Fatalf("\t%s\tShould produce byte identical reports.", failed)
		}
		t.Logf("\t%s\tShould produce byte identical reports.", success)
	}
}

func TestMineIngestError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	st := newState(t, brokenSource{}, options{reportPath: path})

	_, err := st.MineBlock(context.Background())
	if !pipeline.IsIngestError(err) {
		t.Fatalf("\t%s\tShould fail the run when the pool can't be read, got %v", failed, err)
	}
	t.Logf("\t%s\tShould fail the run when the pool can't be read.", success)

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("\t%s\tShould not write a report: %v", failed, err)
	}
	t.Logf("\t%s\tShould not write a report.", success)
}

func TestMineExhausted(t *testing.T) {
	st := newState(t, mempool.NewMemory(), options{maxNonces: 100, target: strings.Repeat("0", 64)})

	if _, err := st.MineBlock(context.Background()); !errors.Is(err, pow.ErrSearchExhausted) {
		t.Fatalf("\t%s\tShould report the exhausted search, got %v", failed, err)
	}
	t.Logf("\t%s\tShould report the exhausted search.", success)

	if st.QueryMinedCount() != 0 {
		t.Fatalf("\t%s\tShould not record a block.", failed)
	}
}

func TestMinePruneAndChain(t *testing.T) {
	mp := mixedPool(t)
	st := newState(t, mp, options{prune: true, chain: true})

	first, err := st.MineBlock(context.Background())
	ifErrFailNow(t, err)

	if mp.Count() != 2 {
		t.Fatalf("\t%s\tShould remove the mined transaction from the pool, got %d left.", failed, mp.Count())
	}
	t.Logf("\t%s\tShould remove the mined transaction from the pool.", success)

	second, err := st.MineBlock(context.Background())
	ifErrFailNow(t, err)

	if second.Block.Header.PrevBlockHash != first.Digest.String() {
		t.Fatalf("\t%s\tShould link the next block to the previous one.", failed)
	}
	t.Logf("\t%s\tShould link the next block to the previous one.", success)

	if len(second.Block.Trans) != 0 {
		t.Fatalf("\t%s\tShould not mine the same transaction twice.", failed)
	}
	t.Logf("\t%s\tShould not mine the same transaction twice.", success)
}

func TestSubmitTx(t *testing.T) {
	mp := mempool.NewMemory()
	st := newState(t, mp, options{})

	n, err := st.SubmitTx(signedTx(t, "submitted", 7))
	if err != nil || n != 1 {
		t.Fatalf("\t%s\tShould be able to submit a transaction, got %d %v", failed, n, err)
	}
	t.Logf("\t%s\tShould be able to submit a transaction.", success)

	res, err := st.MineBlock(context.Background())
	ifErrFailNow(t, err)

	if len(res.Block.Trans) != 1 || res.Block.Trans[0].TxID != "submitted" {
		t.Fatalf("\t%s\tShould mine the submitted transaction, got %+v", failed, res.Block.Trans)
	}
	t.Logf("\t%s\tShould mine the submitted transaction.", success)

	ro := newState(t, brokenSource{}, options{})
	if _, err := ro.SubmitTx(signedTx(t, "x", 1)); !errors.Is(err, state.ErrReadOnly) {
		t.Fatalf("\t%s\tShould refuse a read only source, got %v", failed, err)
	}
	t.Logf("\t%s\tShould refuse a read only source.", success)
}
