package orders

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const orderNumberPrefix = "ORD-"

var orderRefDigits = regexp.MustCompile(`^(?:ORD)?[\s#:-]*0*(\d{1,9})$`)

// FormatOrderNumber renders a sequence value as the public order number.
func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("%s%05d", orderNumberPrefix, seq)
}

// NormalizeOrderRef turns what a shopper typed ("ord 123", "#ORD-00123",
// "00123") into a canonical order number. ok is false when nothing usable
// was given.
func NormalizeOrderRef(ref string) (string, bool) {
	cleaned := strings.ToUpper(strings.TrimSpace(ref))
	cleaned = strings.TrimLeft(cleaned, "#")
	cleaned = strings.TrimSpace(cleaned)
	match := orderRefDigits.FindStringSubmatch(cleaned)
	if match == nil {
		return "", false
	}
	seq, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || seq <= 0 {
		return "", false
	}
	return FormatOrderNumber(seq), true
}
