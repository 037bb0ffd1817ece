package services

import (
	"math/big"
	"testing"
)

func TestNonceValue(t *testing.T) {
	n, err := nonceValue(big.NewInt(7))
	if err != nil || n != 7 {
		t.Fatalf("Expected 7, got %d (%v)", n, err)
	}

	huge := new(big.Int).Lsh(big.NewInt(1), 64)
	if _, err := nonceValue(huge); err == nil {
		t.Error("Expected an error for a nonce above uint64")
	}
	if _, err := nonceValue(nil); err == nil {
		t.Error("Expected an error for a missing nonce")
	}
}
