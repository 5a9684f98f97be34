package oracle

import (
	"strings"

	"github.com/mr-tron/base58"
)

// Terms that show up in vanity addresses of pump-and-dump tokens. Addresses
// matching any of these are treated as likely fakes when filtering is on.
var suspiciousTerms = []string{
	"pump", "moon", "scam", "fake", "elon", "musk", "inu", "shib", "doge",
}

// isValidSolanaAddress checks the address decodes as 32 bytes of base58.
func isValidSolanaAddress(address string) bool {
	if len(address) < 32 || len(address) > 44 {
		return false
	}
	raw, err := base58.Decode(address)
	return err == nil && len(raw) == 32
}

// isLikelyFake flags invalid addresses and addresses carrying a suspicious
// vanity term. Callers skip these rather than spend API budget on them.
func isLikelyFake(address string) bool {
	if !isValidSolanaAddress(address) {
		return true
	}
	lower := strings.ToLower(address)
	for _, term := range suspiciousTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
