package translate

import "strings"

// stripCasts removes `::typename` suffixes from sqlText without touching
// an IPv6 literal's leading `::` (e.g. `'::1'`)
// "strip ::type casts (careful not to match IPv6 ::1)".
func stripCasts(sqlText string) string {
	var b strings.Builder
	i := 0
	inQuote := false
	for i < len(sqlText) {
		c := sqlText[i]
		if c == '\'' {
			inQuote = !inQuote
			b.WriteByte(c)
			i++
			continue
		}
		if !inQuote && c == ':' && i+1 < len(sqlText) && sqlText[i+1] == ':' {
			i += 2
			for i < len(sqlText) && isTypeNameByte(sqlText[i]) {
				i++
			}
			// A parenthesised typmod, e.g. ::numeric(10,2), is skipped too.
			if i < len(sqlText) && sqlText[i] == '(' {
				depth := 1
				i++
				for i < len(sqlText) && depth > 0 {
					if sqlText[i] == '(' {
						depth++
					} else if sqlText[i] == ')' {
						depth--
					}
					i++
				}
			}
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func isTypeNameByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '.' || c == '[' || c == ']'
}
