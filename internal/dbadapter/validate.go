package dbadapter

import (
	"regexp"
	"strings"

	"github.com/shakram02/go-sql-console/internal/domain"
	"github.com/shakram02/go-sql-console/internal/sqlguard"
)

// rule is one forbidden construct. Keywords are matched against the stripped
// text; function calls and raw patterns against the original, so that a
// quoted function name or a literal cannot hide them.
type rule struct {
	re   *regexp.Regexp
	kind string // keyword, function or pattern
	desc string
	raw  bool
}

func keywordRule(kw string) rule {
	return rule{
		re:   regexp.MustCompile(`(?i)(?:^|[^a-zA-Z0-9_])` + kw + `(?:[^a-zA-Z0-9_]|$)`),
		kind: "keyword",
		desc: kw,
	}
}

func functionRule(name string) rule {
	return rule{
		re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + "[\"`\\]]?" + `\s*\(`),
		kind: "function",
		desc: name + "()",
		raw:  true,
	}
}

func patternRule(expr, desc string, raw bool) rule {
	return rule{re: regexp.MustCompile(expr), kind: "pattern", desc: desc, raw: raw}
}

func keywordRules(kws ...string) []rule {
	rules := make([]rule, len(kws))
	for i, kw := range kws {
		rules[i] = keywordRule(kw)
	}
	return rules
}

func functionRules(names ...string) []rule {
	rules := make([]rule, len(names))
	for i, name := range names {
		rules[i] = functionRule(name)
	}
	return rules
}

// commonRules are DML/DDL keywords blocked by all databases, even inside a
// statement the read-only whitelist accepts.
var commonRules = append(
	keywordRules("INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE"),
	// SET statements, but not column/table names containing 'set'
	patternRule(`(?i)(?:^|;)\s*SET\b`, "SET", false),
)

// validate runs the read-only whitelist over guardInput, then the
// checks shared by every database and the dialect's own rules. Stripped
// rules see the text with quoted identifiers emptied; identQuotes lists the
// dialect's opening identifier quotes.
func validate(query, stripped, guardInput, identQuotes string, rules []rule) error {
	if err := sqlguard.CheckReadSafe(guardInput); err != nil {
		return err
	}
	stripped = blankIdentifiers(stripped, identQuotes)

	if _, rest, found := strings.Cut(stripped, ";"); found && strings.TrimSpace(rest) != "" {
		return domain.Errorf(domain.KindStatementRejected, "multiple statements are not allowed")
	}

	for _, set := range [][]rule{commonRules, rules} {
		for _, r := range set {
			target := stripped
			if r.raw {
				target = query
			}
			if r.re.MatchString(target) {
				return domain.Errorf(domain.KindStatementRejected, "query contains forbidden %s: %s", r.kind, r.desc)
			}
		}
	}
	return nil
}

func concatRules(sets ...[]rule) []rule {
	var out []rule
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// blankIdentifiers empties every quoted identifier in text that has already
// had its literals and comments stripped, so `SELECT 1 AS "update"` carries
// no keyword. An unterminated identifier runs to the end.
func blankIdentifiers(stripped, identQuotes string) string {
	var b strings.Builder
	b.Grow(len(stripped))

	for i := 0; i < len(stripped); {
		c := stripped[i]
		if strings.IndexByte(identQuotes, c) < 0 {
			b.WriteByte(c)
			i++
			continue
		}

		closing := c
		if c == '[' {
			closing = ']'
		}
		b.WriteByte(c)
		b.WriteByte(closing)
		if end := strings.IndexByte(stripped[i+1:], closing); end >= 0 {
			i += end + 2
		} else {
			i = len(stripped)
		}
	}

	return b.String()
}
