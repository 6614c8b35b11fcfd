package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ssandoval/treasury-cli/internal/errors"
)

// ValidateAddress checks a recipient or wallet address for the settlement
// chain. Only EVM addresses are accepted.
func ValidateAddress(addr string) (string, error) {
	clean := strings.TrimSpace(addr)
	if !common.IsHexAddress(clean) {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid address %q", addr))
	}
	return common.HexToAddress(clean).Hex(), nil
}

// NormalizeTxHash validates and checksums a transaction hash reported by the
// custody service.
func NormalizeTxHash(v string) (string, bool) {
	clean := strings.TrimSpace(v)
	if !strings.HasPrefix(clean, "0x") || len(clean) != 66 {
		return "", false
	}
	if _, err := hex.DecodeString(clean[2:]); err != nil {
		return "", false
	}
	return common.HexToHash(clean).Hex(), true
}

func NewPlanID() string { return newID("plan") }

func NewStepID() string { return newID("step") }

func NewRequestID() string { return newID("req") }

func newID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return prefix + "-unknown"
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}
