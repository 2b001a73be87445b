// Package validator applies the structural, cryptographic, and economic rules
// a transaction must pass to be included in a block.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ardanlabs/blockminer/foundation/blockchain/address"
	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/signature"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Reason identifies the rule that rejected a transaction.
type Reason string

// Set of reasons a transaction can be rejected for.
const (
	ReasonNone      Reason = ""
	ReasonStructure Reason = "structure"
	ReasonSignature Reason = "signature"
	ReasonSpend     Reason = "spend"
	ReasonValue     Reason = "value"
	ReasonAddress   Reason = "address"
	ReasonDuplicate Reason = "duplicate"
)

// Result describes the outcome of validating a transaction. Input and Output
// identify the offending element for per input and per output rules and are
// -1 otherwise.
type Result struct {
	TxID   string
	Reason Reason
	Detail string
	Input  int
	Output int
}

// Accepted reports whether the transaction passed every rule.
func (r Result) Accepted() bool {
	return r.Reason == ReasonNone
}

// String implements the fmt.Stringer interface for logging.
func (r Result) String() string {
	if r.Accepted() {
		return fmt.Sprintf("%s: accepted", r.TxID)
	}

	return fmt.Sprintf("%s: rejected[%s]: %s", r.TxID, r.Reason, r.Detail)
}

// Reject constructs a result for a transaction that failed a rule outside of
// this package, such as a duplicate id within a pool.
func Reject(txID string, reason Reason, detail string) Result {
	return Result{TxID: txID, Reason: reason, Detail: detail, Input: -1, Output: -1}
}

// =============================================================================

// Config represents the capabilities the validator needs.
type Config struct {
	Verifier  signature.Verifier
	Addresses address.Family
}

// Validator checks transactions. It holds no state that changes between
// calls and is safe for concurrent use.
type Validator struct {
	verifier   signature.Verifier
	addresses  address.Family
	structure  *validator.Validate
	translator ut.Translator
}

// New constructs a validator for use.
func New(cfg Config) (*Validator, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("signature verifier is required")
	}

	if cfg.Addresses == nil {
		return nil, errors.New("address family is required")
	}

	structure := validator.New(validator.WithRequiredStructEnabled())

	// Report field names the way they appear in the transaction records.
	structure.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	translator, _ := ut.New(en.New(), en.New()).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(structure, translator); err != nil {
		return nil, fmt.Errorf("registering translations: %w", err)
	}

	v := Validator{
		verifier:   cfg.Verifier,
		addresses:  cfg.Addresses,
		structure:  structure,
		translator: translator,
	}

	return &v, nil
}

// Validate applies the rules in order and stops at the first failure.
func (v *Validator) Validate(tx database.Tx) Result {
	res := Result{TxID: tx.TxID, Input: -1, Output: -1}

	if detail, ok := v.checkStructure(tx); !ok {
		res.Reason = ReasonStructure
		res.Detail = detail
		return res
	}

	for i, in := range tx.Inputs {
		if reason, detail, ok := v.checkInput(in); !ok {
			res.Reason = reason
			res.Detail = detail
			res.Input = i
			return res
		}
	}

	for i, out := range tx.Outputs {
		if reason, detail, ok := v.checkOutput(out); !ok {
			res.Reason = reason
			res.Detail = detail
			res.Output = i
			return res
		}
	}

	return res
}

// =============================================================================

// checkStructure validates the transaction has an id and non-empty input and
// output lists.
func (v *Validator) checkStructure(tx database.Tx) (string, bool) {
	err := v.structure.Struct(tx)
	if err == nil {
		return "", true
	}

	var verrors validator.ValidationErrors
	if !errors.As(err, &verrors) {
		return err.Error(), false
	}

	msgs := make([]string, len(verrors))
	for i, verror := range verrors {
		msgs[i] = verror.Translate(v.translator)
	}

	return strings.Join(msgs, "; "), false
}

// checkInput validates the signature and then the spend rule.
func (v *Validator) checkInput(in database.TxIn) (Reason, string, bool) {
	switch {
	case in.PublicKey == "":
		return ReasonSignature, "public key is missing", false
	case in.Message == "":
		return ReasonSignature, "message is missing", false
	case in.Signature == "":
		return ReasonSignature, "signature is missing", false
	}

	if !v.verify(in) {
		return ReasonSignature, "signature does not verify", false
	}

	// There is no UTXO set. An input spending a coinbase output is treated
	// as unspendable.
	if in.IsCoinbase {
		return ReasonSpend, "input spends a coinbase output", false
	}

	return ReasonNone, "", true
}

// verify calls the verifier and treats a panic as an invalid signature.
func (v *Validator) verify(in database.TxIn) (valid bool) {
	defer func() {
		if r := recover(); r != nil {
			valid = false
		}
	}()

	return v.verifier.Verify(in.PublicKey, in.Message, in.Signature)
}

// checkOutput validates the value and then the address format.
func (v *Validator) checkOutput(out database.TxOut) (Reason, string, bool) {
	if out.Value <= 0 {
		return ReasonValue, fmt.Sprintf("value %d is not positive", out.Value), false
	}

	if !v.addresses.IsValid(out.Address) {
		return ReasonAddress, fmt.Sprintf("address %q is not valid", out.Address), false
	}

	return ReasonNone, "", true
}
