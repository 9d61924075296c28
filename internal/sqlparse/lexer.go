package sqlparse

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

type tokenKind int

const (
	tIdent tokenKind = iota
	tQuoted
	tString
	tNumber
	tPunct
	tOther
)

// sqlLexer never fails: anything not matched by a named rule becomes a single Other rune
var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*|/\*(?s:.*?)(?:\*/|$)`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "QuotedIdent", Pattern: "`(?:[^`]|``)*`|\"(?:[^\"]|\"\")*\"|\\[[^\\]]*\\]"},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_$]*`},
	{Name: "Punct", Pattern: `[(),;.]`},
	{Name: "Other", Pattern: `(?s:.)`},
})

var (
	elided = map[lexer.TokenType]bool{}
	kinds  = map[lexer.TokenType]tokenKind{}
)

func init() {
	symbols := sqlLexer.Symbols()
	elided[symbols["Comment"]] = true
	elided[symbols["Whitespace"]] = true
	kinds[symbols["QuotedIdent"]] = tQuoted
	kinds[symbols["String"]] = tString
	kinds[symbols["Number"]] = tNumber
	kinds[symbols["Ident"]] = tIdent
	kinds[symbols["Punct"]] = tPunct
	kinds[symbols["Other"]] = tOther
}

// token is a lexed word with its byte span in the source text
type token struct {
	kind  tokenKind
	value string
	start int
	end   int
}

// text returns the identifier with any quoting removed
func (t token) text() string {
	if t.kind != tQuoted || len(t.value) < 2 {
		return t.value
	}
	inner := t.value[1 : len(t.value)-1]
	switch t.value[0] {
	case '`':
		return strings.ReplaceAll(inner, "``", "`")
	case '"':
		return strings.ReplaceAll(inner, `""`, `"`)
	}
	return inner
}

// is reports whether t is the unquoted keyword kw
func (t token) is(kw string) bool {
	return t.kind == tIdent && strings.EqualFold(t.value, kw)
}

// isName reports whether t can name a table, column or index
func (t token) isName() bool {
	return t.kind == tIdent || t.kind == tQuoted
}

func (t token) isPunct(p string) bool {
	return t.kind == tPunct && t.value == p
}

// tokenize splits text into tokens, dropping comments and whitespace
func tokenize(text string) ([]token, error) {
	lex, err := sqlLexer.LexString("", text)
	if err != nil {
		return nil, fmt.Errorf("failed to start lexer: %w", err)
	}
	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize sql: %w", err)
	}

	toks := make([]token, 0, len(raw))
	for _, tok := range raw {
		if tok.EOF() || elided[tok.Type] {
			continue
		}
		toks = append(toks, token{
			kind:  kinds[tok.Type],
			value: tok.Value,
			start: tok.Pos.Offset,
			end:   tok.Pos.Offset + len(tok.Value),
		})
	}
	return toks, nil
}
