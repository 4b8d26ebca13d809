// Package utils provides small helpers shared across the indexer.
package utils

import (
	"encoding/hex"
	"regexp"
	"strings"
)

// ConvertBytesToString converts a byte array to a hexadecimal string with
// 0x prefix.
func ConvertBytesToString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// SnakeCase converts a string to snake_case by replacing hyphens with
// underscores.
func SnakeCase(s string) string {
	notSnake := regexp.MustCompile(`[_-]`)
	return notSnake.ReplaceAllString(s, "_")
}

// SplitVaultID splits "<accountId>-<wrappedCurrency>-<collateralCurrency>"
// into its parts. Currency strings never contain dashes.
func SplitVaultID(vaultID string) (account string, wrapped string, collateral string, ok bool) {
	parts := strings.SplitN(vaultID, "-", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// CeilDiv divides two unsigned integers, rounding up.
func CeilDiv(a uint64, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
