// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutils normalizes free text such as addresses and place names.
package textutils

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LowerASCIIFolding normalizes a string by removing accents, lowercasing, and trimming spaces.
func LowerASCIIFolding(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// NormalizeAddress returns the key under which an address is cached:
// folded to lowercase ASCII, punctuation other than commas dropped, and runs
// of whitespace collapsed. "Mombasa,  Kenya." and "mombasa, kenya" share a key.
func NormalizeAddress(address string) string {
	folded := LowerASCIIFolding(address)

	var b strings.Builder

	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ',':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	parts := strings.Split(b.String(), ",")
	out := parts[:0]

	for _, p := range parts {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			out = append(out, p)
		}
	}

	return strings.Join(out, ", ")
}

// FormatInt formats an integer with commas for human readability.
func FormatInt(n int64) string {
	in := strconv.FormatInt(n, 10)

	digits := len(in)
	if n < 0 {
		digits--
	}

	out := make([]byte, len(in)+(digits-1)/3)
	if n < 0 {
		in, out[0] = in[1:], '-'
	}

	for i, j, k := len(in)-1, len(out)-1, 0; ; i, j = i-1, j-1 {
		out[j] = in[i]
		if i == 0 {
			return string(out)
		}

		if k++; k == 3 {
			j, k = j-1, 0
			out[j] = ','
		}
	}
}
