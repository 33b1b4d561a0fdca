package token

type TokenType string

type Token struct {
	Type    TokenType
	Lexeme  string
	Literal interface{}
	Line    int
	Column  int
}

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	NEWLINE TokenType = "NEWLINE"
	INDENT  TokenType = "INDENT"
	DEDENT  TokenType = "DEDENT"

	IDENT_LOWER TokenType = "IDENT"
	INT         TokenType = "INT"
	FLOAT       TokenType = "FLOAT"
	STRING      TokenType = "STRING"

	ASSIGN TokenType = "="
	PLUS   TokenType = "+"
	MINUS  TokenType = "-"
	STAR   TokenType = "*"
	SLASH  TokenType = "/"

	EQ     TokenType = "=="
	NOT_EQ TokenType = "!="
	LT     TokenType = "<"
	LTE    TokenType = "<="
	GT     TokenType = ">"
	GTE    TokenType = ">="

	COMMA  TokenType = ","
	COLON  TokenType = ":"
	DOT    TokenType = "."
	ARROW  TokenType = "->"
	AT     TokenType = "@"
	LPAREN TokenType = "("
	RPAREN TokenType = ")"

	// Keywords
	CLASS  TokenType = "CLASS"
	DEF    TokenType = "DEF"
	RETURN TokenType = "RETURN"
	PASS   TokenType = "PASS"
	TRUE   TokenType = "TRUE"
	FALSE  TokenType = "FALSE"
	AND    TokenType = "AND"
	OR     TokenType = "OR"
	NOT    TokenType = "NOT"
)

var keywords = map[string]TokenType{
	"class":  CLASS,
	"def":    DEF,
	"return": RETURN,
	"pass":   PASS,
	"True":   TRUE,
	"False":  FALSE,
	"and":    AND,
	"or":     OR,
	"not":    NOT,
}

// LookupIdent returns the keyword token type for ident, or IDENT_LOWER.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT_LOWER
}
