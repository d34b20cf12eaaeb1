package reconcile

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	strikeRe  = regexp.MustCompile(`\d+\.\d+`)
	callPutRe = regexp.MustCompile(`(?i)(?:^|_)([CP])(?:_|$)`)
)

// ParseIdentifier extracts the strike (first decimal number) and the call/put
// marker (a standalone C or P token, case-insensitive) from an option
// identifier such as "SYM_250.0_C_15JAN25". Extraction is best-effort: a
// missing or unparsable component yields nil / "" rather than an error, since
// this is a data-quality signal, not a failure.
func ParseIdentifier(identifier string) (strike *float64, callPut string) {
	if m := strikeRe.FindString(identifier); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			strike = &v
		}
	}
	if m := callPutRe.FindStringSubmatch(identifier); m != nil {
		callPut = strings.ToUpper(m[1])
	}
	return strike, callPut
}
