package utils

import (
	"strings"

	"github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
)

// NormalizeStoreName folds a free-text store name into the key used to
// detect a coupon being reused at the same store. Width variants, case,
// punctuation and surrounding spaces do not change the key.
func NormalizeStoreName(name string) string {
	folded := norm.NFKC.String(strings.TrimSpace(name))
	if folded == "" {
		return ""
	}
	if key := slug.Make(folded); key != "" {
		return key
	}
	// nothing transliterable; fall back to the folded text itself
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}
