package provider

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// AccountAddress re-encodes a validator operator address (e.g. cosmosvaloper1...)
// under the account prefix (cosmos1...). Both encode the same key bytes.
func AccountAddress(operator, prefix string) (string, error) {
	_, data, err := bech32.DecodeToBase256(operator)
	if err != nil {
		return "", fmt.Errorf("decode operator address %q: %w", operator, err)
	}
	addr, err := bech32.EncodeFromBase256(prefix, data)
	if err != nil {
		return "", fmt.Errorf("encode account address with prefix %q: %w", prefix, err)
	}
	return addr, nil
}
