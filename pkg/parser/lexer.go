package parser

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// TeenyBasicLexer tokenizes source text for the grammar in grammar.go.
// Ident matches both keywords ("LET", "PRINT", ...) and single-letter
// variable names ("A".."Z") uniformly: participle's literal string
// terminals ("LET", "IF", ...) match against any token whose value
// equals the literal, regardless of declared token type, so the two
// uses never collide — no keyword is a single letter.
var TeenyBasicLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Ident", `[A-Z]+`, nil},
		{"Int", `[0-9]+`, nil},
		{"Punct", `[-+*/<=>()]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
