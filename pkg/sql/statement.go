package sql

import (
	"strings"
	"unicode"
)

// Syntax describes the lexical rules that differ between SQL dialects.
// Only the rules needed to find code outside literals and comments are modelled.
type Syntax struct {
	// BackslashEscapes allows \' and \" inside quoted strings.
	BackslashEscapes bool
	// HashComments treats # as the start of a line comment.
	HashComments bool
	// BracketIdentifiers treats [name] as a quoted identifier.
	BracketIdentifiers bool
	// VersionedComments executes the body of /*! ... */ and /*M! ... */
	// instead of treating it as a comment.
	VersionedComments bool
}

var (
	MySQL     = Syntax{BackslashEscapes: true, HashComments: true, VersionedComments: true}
	Postgres  = Syntax{}
	SQLServer = Syntax{BracketIdentifiers: true}
)

// rowKeywords are leading keywords of statements that produce a result set.
// WITH only lands here when no statement verb follows the CTE list.
var rowKeywords = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"WITH":     true,
	"VALUES":   true,
	"TABLE":    true,
	"HANDLER":  true,
	"CHECK":    true,
	"CHECKSUM": true,
	"ANALYZE":  true,
	"OPTIMIZE": true,
	"REPAIR":   true,
	"CALL":     true,
	"EXEC":     true,
	"EXECUTE":  true,
}

// cteVerbs are the statements a WITH clause can introduce.
var cteVerbs = map[string]bool{
	"SELECT":  true,
	"INSERT":  true,
	"UPDATE":  true,
	"DELETE":  true,
	"REPLACE": true,
	"MERGE":   true,
	"VALUES":  true,
	"TABLE":   true,
}

// Mask returns statement with the bodies of string literals, quoted
// identifiers and comments replaced by spaces. Byte offsets are preserved so
// a position found in the mask indexes the original text.
func (s Syntax) Mask(statement string) string {
	masked := []byte(statement)
	n := len(masked)
	versioned := false

	for i := 0; i < n; {
		c := statement[i]
		switch {
		case versioned && c == '*' && i+1 < n && statement[i+1] == '/':
			blank(masked, i, i+2)
			versioned = false
			i += 2
		case c == '/' && s.VersionedComments && versionedOpener(statement, i) > 0:
			end := i + versionedOpener(statement, i)
			blank(masked, i, end)
			versioned = true
			i = end
		case c == '\'' || c == '"':
			end := s.closeQuote(statement, i+1, c)
			blank(masked, i, end)
			i = end
		case c == '`':
			end := closeDoubled(statement, i+1, '`')
			blank(masked, i, end)
			i = end
		case c == '[' && s.BracketIdentifiers && i+1 < n && isIdentStart(statement[i+1]):
			end := closeDoubled(statement, i+1, ']')
			blank(masked, i, end)
			i = end
		case c == '-' && i+1 < n && statement[i+1] == '-':
			end := lineEnd(statement, i)
			blank(masked, i, end)
			i = end
		case c == '#' && s.HashComments:
			end := lineEnd(statement, i)
			blank(masked, i, end)
			i = end
		case c == '/' && i+1 < n && statement[i+1] == '*':
			end := strings.Index(statement[i+2:], "*/")
			if end < 0 {
				end = n
			} else {
				end = i + 2 + end + 2
			}
			blank(masked, i, end)
			i = end
		default:
			i++
		}
	}
	return string(masked)
}

// versionedOpener returns the length of a /*!NNNNN or /*M!NNNNN opener at i,
// or 0 when there is none.
func versionedOpener(statement string, i int) int {
	rest := statement[i:]
	var n int
	switch {
	case strings.HasPrefix(rest, "/*!"):
		n = 3
	case strings.HasPrefix(rest, "/*M!"):
		n = 4
	default:
		return 0
	}
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	return n
}

// firstWord returns the upper-cased first word of masked, skipping whitespace
// and opening parentheses, and the offset just past it.
func firstWord(masked string) (string, int) {
	start := strings.IndexFunc(masked, func(r rune) bool {
		return !unicode.IsSpace(r) && r != '('
	})
	if start < 0 {
		return "", 0
	}
	end := start
	for end < len(masked) && isIdentPart(masked[end]) {
		end++
	}
	return strings.ToUpper(masked[start:end]), end
}

// verb returns the leading keyword of masked and the offset just past it.
// For a WITH statement it is the first keyword after the CTE list, e.g.
// UPDATE for "WITH late AS (SELECT ...) UPDATE ...".
func verb(masked string) (string, int) {
	word, end := firstWord(masked)
	if word != "WITH" {
		return word, end
	}
	found := ""
	next := end
	topLevelWords(masked, end, func(w string, at int) bool {
		if cteVerbs[w] {
			found, next = w, at
			return false
		}
		return true
	})
	if found == "" {
		return word, end
	}
	return found, next
}

// topLevelWords calls fn with each upper-cased word of masked[from:] that is
// not nested inside parentheses opened after from, together with the offset
// just past it. Iteration stops when fn returns false.
func topLevelWords(masked string, from int, fn func(word string, end int) bool) {
	depth := 0
	for i := from; i < len(masked); {
		c := masked[i]
		switch {
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			i++
		case isIdentPart(c):
			start := i
			for i < len(masked) && isIdentPart(masked[i]) {
				i++
			}
			if depth <= 0 && !fn(strings.ToUpper(masked[start:i]), i) {
				return
			}
		default:
			i++
		}
	}
}

// ReturnsRows reports whether the statement is expected to produce a result
// set rather than an affected-row count. DML with RETURNING (postgres) or
// OUTPUT INSERTED/DELETED (sqlserver) produces rows too. SELECT ... INTO
// stores its result and returns none.
func (s Syntax) ReturnsRows(statement string) bool {
	masked := s.Mask(statement)
	word, end := verb(masked)
	if word == "SELECT" {
		into := false
		topLevelWords(masked, end, func(w string, _ int) bool {
			into = w == "INTO"
			return !into
		})
		return !into
	}
	if rowKeywords[word] {
		return true
	}

	words := strings.FieldsFunc(strings.ToUpper(masked), func(r rune) bool {
		return r != '_' && r != '.' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		if w == "RETURNING" {
			return true
		}
		if w == "OUTPUT" && i+1 < len(words) &&
			(strings.HasPrefix(words[i+1], "INSERTED") || strings.HasPrefix(words[i+1], "DELETED")) {
			return true
		}
	}
	return false
}

// RewritePlaceholders replaces each '?' outside literals and comments with
// placeholder(n), n counting from 1.
func (s Syntax) RewritePlaceholders(statement string, placeholder func(n int) string) string {
	masked := s.Mask(statement)
	if !strings.Contains(masked, "?") {
		return statement
	}

	var b strings.Builder
	b.Grow(len(statement) + 8)
	n := 0
	last := 0
	for i := 0; i < len(masked); i++ {
		if masked[i] != '?' {
			continue
		}
		n++
		b.WriteString(statement[last:i])
		b.WriteString(placeholder(n))
		last = i + 1
	}
	b.WriteString(statement[last:])
	return b.String()
}

// closeQuote returns the index just past the quote that closes a literal
// opened before start. Doubled quotes stay inside the literal. Unterminated
// literals run to the end of the statement.
func (s Syntax) closeQuote(statement string, start int, quote byte) int {
	for i := start; i < len(statement); i++ {
		switch statement[i] {
		case '\\':
			if s.BackslashEscapes {
				i++
			}
		case quote:
			if i+1 < len(statement) && statement[i+1] == quote {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(statement)
}

func closeDoubled(statement string, start int, quote byte) int {
	for i := start; i < len(statement); i++ {
		if statement[i] != quote {
			continue
		}
		if i+1 < len(statement) && statement[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(statement)
}

func lineEnd(statement string, start int) int {
	if nl := strings.IndexByte(statement[start:], '\n'); nl >= 0 {
		return start + nl
	}
	return len(statement)
}

func blank(b []byte, from, to int) {
	for i := from; i < to; i++ {
		if b[i] != '\n' {
			b[i] = ' '
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == ' ' || c == '#' || c == '@' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
