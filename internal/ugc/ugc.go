// Package ugc renders and parses Universal Geographic Code headers.
//
// A UGC identifies a zone or county as SSFNNN: two-letter state, one-letter
// format ("Z" zone, "C" county), three-digit number. Headers join codes with
// "-", collapse runs of consecutive numbers into NNN>NNN ranges, elide the
// state-format prefix when unchanged from the previous code, and terminate
// with the product purge time as -DDHHMM-.
//
//	FLC017-053-081-101-115-171800-
//	FLZ052>054-057-161000-
package ugc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var codeRe = regexp.MustCompile(`^[A-Z]{2}[CZ]\d{3}$`)

// Valid reports whether code is a well-formed SSFNNN UGC.
func Valid(code string) bool {
	return codeRe.MatchString(code)
}

// Header renders the compacted UGC header for the given codes, terminated by
// the expiration time. Codes are sorted; duplicates are dropped. Codes that
// do not match SSFNNN (gauge point ids, for example) are rendered verbatim
// without compaction.
func Header(codes []string, expires time.Time) string {
	if len(codes) == 0 {
		return ""
	}

	uniq := dedupeSorted(codes)

	var b strings.Builder
	prevPrefix := ""
	i := 0
	for i < len(uniq) {
		code := uniq[i]
		if !Valid(code) {
			b.WriteString(code)
			b.WriteString("-")
			prevPrefix = ""
			i++
			continue
		}

		prefix, num := code[:3], mustAtoi(code[3:])

		// Extend a run of consecutive numbers within the same prefix.
		j := i
		for j+1 < len(uniq) {
			next := uniq[j+1]
			if !Valid(next) || next[:3] != prefix || mustAtoi(next[3:]) != mustAtoi(uniq[j][3:])+1 {
				break
			}
			j++
		}

		if prefix != prevPrefix {
			b.WriteString(prefix)
			prevPrefix = prefix
		}
		b.WriteString(fmt.Sprintf("%03d", num))
		if j > i {
			b.WriteString(fmt.Sprintf(">%03d", mustAtoi(uniq[j][3:])))
		}
		b.WriteString("-")
		i = j + 1
	}

	b.WriteString(expires.UTC().Format("021504"))
	b.WriteString("-")
	return b.String()
}

// Expand parses a compacted header body (without the trailing purge time)
// back into the full code list. It is the inverse of Header for valid codes.
func Expand(header string) ([]string, error) {
	var out []string
	prefix := ""
	for _, tok := range strings.Split(strings.TrimSuffix(header, "-"), "-") {
		if tok == "" {
			continue
		}
		switch {
		case codeRe.MatchString(tok):
			prefix = tok[:3]
			out = append(out, tok)
		case strings.Contains(tok, ">"):
			lo, hi, err := parseRange(tok, prefix)
			if err != nil {
				return nil, err
			}
			for n := lo; n <= hi; n++ {
				out = append(out, fmt.Sprintf("%s%03d", prefix, n))
			}
		case len(tok) == 3 && isDigits(tok):
			if prefix == "" {
				return nil, fmt.Errorf("ugc: bare number %q without a preceding prefix", tok)
			}
			out = append(out, prefix+tok)
		default:
			// Verbatim token (gauge id). Resets prefix elision.
			prefix = ""
			out = append(out, tok)
		}
	}
	return out, nil
}

func parseRange(tok, prefix string) (int, int, error) {
	parts := strings.SplitN(tok, ">", 2)
	loStr, hiStr := parts[0], parts[1]
	if codeRe.MatchString(loStr) {
		prefix = loStr[:3]
		loStr = loStr[3:]
	}
	if prefix == "" {
		return 0, 0, fmt.Errorf("ugc: range %q without a prefix", tok)
	}
	if !isDigits(loStr) || !isDigits(hiStr) {
		return 0, 0, fmt.Errorf("ugc: malformed range %q", tok)
	}
	lo, _ := strconv.Atoi(loStr)
	hi, _ := strconv.Atoi(hiStr)
	if hi < lo {
		return 0, 0, fmt.Errorf("ugc: inverted range %q", tok)
	}
	return lo, hi, nil
}

func dedupeSorted(codes []string) []string {
	sorted := make([]string, len(codes))
	copy(sorted, codes)
	sort.Strings(sorted)
	out := sorted[:0]
	for i, c := range sorted {
		if i == 0 || c != sorted[i-1] {
			out = append(out, c)
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
