package email

import (
	"strings"
	"unicode/utf8"
)

// Mask hides the local part of an address for logs and error messages,
// keeping the first character and the domain: "asha@example.com" becomes
// "a***@example.com". Input without a usable local part is fully masked.
func Mask(addr string) string {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return "***"
	}
	first, _ := utf8.DecodeRuneInString(addr)
	return string(first) + "***" + addr[at:]
}
