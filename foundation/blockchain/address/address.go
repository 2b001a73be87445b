// Package address provides the different address format families an output
// destination can be checked against.
package address

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
)

// List of supported address families.
const (
	FamilyLegacy      = "legacy"
	FamilyBase58Check = "base58check"
	FamilyBech32      = "bech32"
)

// Family represents the behavior of an address format validator.
type Family interface {
	IsValid(address string) bool
}

// Func is an adapter to allow the use of ordinary functions as a Family.
type Func func(address string) bool

// IsValid implements the Family interface.
func (f Func) IsValid(address string) bool {
	return f(address)
}

// Map of the different families with their validators.
var families = map[string]Family{
	FamilyLegacy:      Func(isLegacy),
	FamilyBase58Check: Func(isBase58Check),
	FamilyBech32:      Func(isBech32),
}

// Retrieve returns the specified address family.
func Retrieve(family string) (Family, error) {
	f, exists := families[strings.ToLower(family)]
	if !exists {
		return nil, fmt.Errorf("address family %q does not exist, supported %v", family, Families())
	}
	return f, nil
}

// Families returns the sorted names of the supported address families.
func Families() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// =============================================================================

// legacyPattern matches pay-to-pubkey-hash and pay-to-script-hash addresses
// by their version prefix and the base58 alphabet.
var legacyPattern = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)

// Version bytes for the legacy mainnet address types.
const (
	versionP2PKH byte = 0x00
	versionP2SH  byte = 0x05
)

// bech32HRP is the human readable part for mainnet segwit addresses.
const bech32HRP = "bc"

// isLegacy checks the address only against the legacy pattern.
func isLegacy(address string) bool {
	return legacyPattern.MatchString(address)
}

// isBase58Check checks the legacy pattern and then the embedded checksum
// and version byte.
func isBase58Check(address string) bool {
	if !isLegacy(address) {
		return false
	}

	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return false
	}

	if len(payload) != 20 {
		return false
	}

	return version == versionP2PKH || version == versionP2SH
}

// isBech32 checks for a version 0 segwit address on mainnet.
func isBech32(address string) bool {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return false
	}

	if hrp != bech32HRP || len(data) < 1 {
		return false
	}

	// The first word is the witness version.
	if data[0] != 0 {
		return false
	}

	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return false
	}

	return len(program) == 20 || len(program) == 32
}
