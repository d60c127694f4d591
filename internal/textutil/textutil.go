// Package textutil provides word-form utilities for token-level features.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var tokenizeRe = regexp.MustCompile(`[\p{L}\p{N}_]+(?:['.\-][\p{L}\p{N}_]+)*|[^\s\p{L}\p{N}_]+`)

// Tokenize splits text into word and punctuation tokens.
func Tokenize(text string) []string {
	return tokenizeRe.FindAllString(text, -1)
}

var (
	newlineRe    = regexp.MustCompile(`[\n\r]`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
)

// NormalizeWhitespaces replaces newlines and multiple whitespace with a single space.
func NormalizeWhitespaces(text string) string {
	text = newlineRe.ReplaceAllString(text, " ")
	return multiSpaceRe.ReplaceAllString(text, " ")
}

// URLForm replaces any word-form that looks like a URL or e-mail address.
const URLForm = "#url#"

var (
	urlRe         = regexp.MustCompile(`(?i)^(?:[a-z]{3,9}://|www\.)\S+|^[\w.+-]+@[\w-]+\.[\w.-]+$|^(?:\w+\.)+(?:com|edu|gov|int|mil|net|org|biz)$`)
	digitLikeRe   = regexp.MustCompile(`\d%|\$\d|(?:^|\d)\.\d|\d,\d|\d:\d|\d-\d|\d/\d`)
	digitSpanRe   = regexp.MustCompile(`\d+`)
	punctRepeatRe = regexp.MustCompile(`\.{2,}|!{2,}|\?{2,}|-{2,}|\*{2,}|={2,}|~{2,}|,{2,}`)
)

// Simplify maps a word-form to its simplified form: URLs collapse to
// URLForm, numbers collapse to "0" and runs of repeated punctuation are
// shortened to two characters.
func Simplify(form string) string {
	if urlRe.MatchString(form) {
		return URLForm
	}
	form = digitLikeRe.ReplaceAllString(form, "0")
	form = digitSpanRe.ReplaceAllString(form, "0")
	return punctRepeatRe.ReplaceAllStringFunc(form, func(s string) string {
		return s[:1] + s[:1]
	})
}

// Prefixes returns the prefixes of form of length 1 to n runes, never the
// whole form.
func Prefixes(form string, n int) []string {
	runes := []rune(form)
	n = min(n, len(runes)-1)
	var res []string
	for i := 1; i <= n; i++ {
		res = append(res, string(runes[:i]))
	}
	return res
}

// Suffixes returns the suffixes of form of length 1 to n runes, shortest
// first, never the whole form.
func Suffixes(form string, n int) []string {
	runes := []rune(form)
	n = min(n, len(runes)-1)
	var res []string
	for i := 1; i <= n; i++ {
		res = append(res, string(runes[len(runes)-i:]))
	}
	return res
}

// Shape maps letters to X or x and digits to d, collapsing runs of the same
// class to at most two characters: "McDonald's" becomes "XxXxx'x".
func Shape(form string) string {
	var buf strings.Builder
	var last rune
	run := 0
	for _, r := range form {
		var c rune
		switch {
		case unicode.IsUpper(r):
			c = 'X'
		case unicode.IsLetter(r):
			c = 'x'
		case unicode.IsDigit(r):
			c = 'd'
		default:
			c = r
		}
		if c == last {
			run++
		} else {
			last, run = c, 1
		}
		if run <= 2 {
			buf.WriteRune(c)
		}
	}
	return buf.String()
}

// Orthographic flags reported by Orthography.
const (
	AllUpper   = "upper"
	AllLower   = "lower"
	InitUpper  = "init_upper"
	OneCapital = "one_cap"
	Capitals   = "caps"
	HasPeriod  = "period"
	HasDigit   = "digit"
	HasHyphen  = "hyphen"
)

// Orthography returns the orthographic flags that hold for form.
func Orthography(form string) []string {
	if form == "" {
		return nil
	}
	var flags []string
	upper, lower, inner := 0, 0, 0
	letters := 0
	for i, r := range []rune(form) {
		if unicode.IsUpper(r) {
			upper++
			if i > 0 {
				inner++
			}
		}
		if unicode.IsLower(r) {
			lower++
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters > 0 && upper == letters {
		flags = append(flags, AllUpper)
	}
	if letters > 0 && lower == letters {
		flags = append(flags, AllLower)
	}
	if first := []rune(form)[0]; unicode.IsUpper(first) {
		flags = append(flags, InitUpper)
	}
	switch {
	case inner == 1:
		flags = append(flags, OneCapital)
	case inner > 1:
		flags = append(flags, Capitals)
	}
	if strings.Contains(form, ".") {
		flags = append(flags, HasPeriod)
	}
	if strings.IndexFunc(form, unicode.IsDigit) >= 0 {
		flags = append(flags, HasDigit)
	}
	if strings.Contains(form, "-") {
		flags = append(flags, HasHyphen)
	}
	return flags
}
