package query

import (
	"regexp"
	"strings"
)

// The translator only understands a deliberately bounded SQL grammar: table
// name, distinct-count aggregate, single equality filter, numeric limit and a
// plain column list. Anything outside it is a translation failure, never a
// blind pass-through.
var (
	fromRe          = regexp.MustCompile(`(?is)\bfrom\s+"?([a-zA-Z_][a-zA-Z0-9_]*)"?`)
	distinctCountRe = regexp.MustCompile(`(?is)count\s*\(\s*distinct\s+"?([a-zA-Z_][a-zA-Z0-9_]*)"?\s*\)`)
	countRe         = regexp.MustCompile(`(?is)count\s*\(`)
	whereEqRe       = regexp.MustCompile(`(?is)\bwhere\s+"?([a-zA-Z_][a-zA-Z0-9_]*)"?\s*=\s*'([^']*)'`)
	limitRe         = regexp.MustCompile(`(?is)\blimit\s+(\d+)`)
	selectListRe    = regexp.MustCompile(`(?is)\bselect\s+(.*?)\s+from\b`)
)

// tableName extracts the target table from a FROM clause, empty when absent.
func tableName(query string) string {
	m := fromRe.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// distinctCountColumn extracts the column of a COUNT(DISTINCT col) aggregate.
func distinctCountColumn(query string) string {
	m := distinctCountRe.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// hasCountAggregate reports whether the query carries any COUNT(...) call.
func hasCountAggregate(query string) bool {
	return countRe.MatchString(query)
}

// equalityFilter extracts a single `WHERE col = 'value'` clause.
func equalityFilter(query string) (column, value string, ok bool) {
	m := whereEqRe.FindStringSubmatch(query)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), m[2], true
}

// rowLimit extracts a numeric LIMIT, 0 when absent.
func rowLimit(query string) int {
	m := limitRe.FindStringSubmatch(query)
	if m == nil {
		return 0
	}
	n := 0
	for _, c := range m[1] {
		n = n*10 + int(c-'0')
	}
	return n
}

// selectColumns splits the select list into mappable column names and the
// expressions that had to be dropped (function calls, CASE expressions,
// anything a scoped read cannot express). A bare `*` maps to all columns.
func selectColumns(query string) (columns []string, dropped []string) {
	m := selectListRe.FindStringSubmatch(query)
	if m == nil {
		return nil, nil
	}
	list := strings.TrimSpace(m[1])
	if list == "*" {
		return nil, nil
	}
	for _, part := range strings.Split(list, ",") {
		col := strings.TrimSpace(part)
		if col == "" {
			continue
		}
		lower := strings.ToLower(col)
		if strings.ContainsAny(col, "()") || strings.HasPrefix(lower, "case ") || strings.Contains(lower, " case ") {
			dropped = append(dropped, col)
			continue
		}
		// strip aliases and qualifiers: "t.email AS contato" -> "email"
		if idx := strings.Index(lower, " as "); idx >= 0 {
			col = strings.TrimSpace(col[:idx])
		}
		if idx := strings.LastIndex(col, "."); idx >= 0 {
			col = col[idx+1:]
		}
		col = strings.Trim(col, `"`)
		if col == "" {
			continue
		}
		columns = append(columns, strings.ToLower(col))
	}
	return columns, dropped
}
