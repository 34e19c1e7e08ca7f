package digest

import "golang.org/x/text/unicode/norm"

// NormalizeText returns the NFC form of s as UTF-8 bytes.
// Text inputs are hashed in this form so that canonically equivalent strings
// produce the same digest.
func NormalizeText(s string) []byte {
	return norm.NFC.Bytes([]byte(s))
}
