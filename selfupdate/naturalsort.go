package selfupdate

import (
	"regexp"
	"strconv"
	"strings"
)

var tokenizer = regexp.MustCompile(`(\d+|\D+)`)

type naturalSortToken struct {
	str   string
	num   int
	isNum bool
}

func tokenize(s string) []naturalSortToken {
	parts := tokenizer.FindAllString(s, -1)
	tokens := make([]naturalSortToken, len(parts))
	for i, p := range parts {
		if num, err := strconv.Atoi(p); err == nil {
			tokens[i] = naturalSortToken{num: num, isNum: true}
		} else {
			tokens[i] = naturalSortToken{str: strings.ToLower(p)}
		}
	}
	return tokens
}

// naturalLess orders strings with embedded numbers numerically, so
// "1.0.0-rc.10" sorts after "1.0.0-rc.9".
func naturalLess(s1, s2 string) bool {
	t1, t2 := tokenize(s1), tokenize(s2)

	for i := range min(len(t1), len(t2)) {
		// Numbers sort before text.
		if t1[i].isNum != t2[i].isNum {
			return t1[i].isNum
		}
		if t1[i].isNum {
			if t1[i].num != t2[i].num {
				return t1[i].num < t2[i].num
			}
		} else if t1[i].str != t2[i].str {
			return t1[i].str < t2[i].str
		}
	}
	return len(t1) < len(t2)
}
