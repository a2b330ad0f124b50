// Package dnsname normalizes user-supplied names to RFC 1123 compatible
// forms used for inner-cluster hostnames and DID derivation.
package dnsname

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxLabelLen = 63

// stripMarks decomposes the input and drops combining marks, turning
// accented characters into their ASCII base form.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize converts a name to the strict inner-DNS form: lowercase ASCII
// letters and digits only, capped at 63 characters. Hyphens and every other
// separator are removed so the result can be embedded in service hostnames.
func Normalize(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	s := deaccent(strings.ToLower(input))

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > maxLabelLen {
		out = out[:maxLabelLen]
	}
	return out
}

// NormalizeHost converts a name to a hostname-compatible form, keeping dots
// as label separators and replacing other disallowed characters with hyphens.
// Each label is trimmed of leading/trailing hyphens and capped at 63
// characters; the whole name is capped at 253 characters per RFC 1123.
func NormalizeHost(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	s := deaccent(strings.ToLower(input))

	var b strings.Builder
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	labels := strings.Split(b.String(), ".")
	for i, label := range labels {
		label = strings.Trim(label, "-")
		if len(label) > maxLabelLen {
			label = label[:maxLabelLen]
		}
		labels[i] = label
	}
	out := strings.Join(labels, ".")
	if len(out) > 253 {
		out = out[:253]
	}
	return out
}

func deaccent(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return out
}
