package sqlscan

import "strings"

// StripLiterals returns sql with string literals and dollar-quoted bodies
// replaced by '' and comments replaced by a single space. Quoted identifiers
// are kept verbatim. The result is only meant for pattern checks.
func StripLiterals(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	for i := 0; i < len(sql); {
		end, kind := Next(sql, i)
		switch kind {
		case SingleQuoted, DollarQuoted:
			b.WriteString("''")
		case LineComment, BlockComment:
			b.WriteByte(' ')
		default:
			b.WriteString(sql[i:end])
		}
		i = end
	}

	return b.String()
}
