package cmdparse

import "strings"

// tokenKind distinguishes shell words, redirection operators, and
// command separators.
type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenOp
	tokenSep
)

// token is one lexical unit of a command line. For words, text holds the
// dequoted content; for operators and separators, the literal.
type token struct {
	kind tokenKind
	text string
}

// operators lists the recognized redirection operators, longest first so
// that a scan position never matches a prefix of a longer operator
// (e.g. "2>&1" must not lex as "2>" followed by the word "&1").
var operators = [...]string{"2>&1", "2>>", "2>", "&>", ">>", ">"}

// scanner is a single-pass lexer over a raw command string. It produces
// word and operator tokens on demand; callers stop pulling as soon as
// they have what they need.
type scanner struct {
	input string
	pos   int
}

func newScanner(input string) *scanner {
	return &scanner{input: input}
}

// next returns the next token, or ok=false at end of input.
func (s *scanner) next() (token, bool) {
	for s.pos < len(s.input) && isSpace(s.input[s.pos]) {
		s.pos++
	}
	if s.pos >= len(s.input) {
		return token{}, false
	}

	if op := s.matchOperator(true); op != "" {
		s.pos += len(op)
		return token{kind: tokenOp, text: op}, true
	}
	if sep := s.matchSeparator(); sep != "" {
		s.pos += len(sep)
		return token{kind: tokenSep, text: sep}, true
	}

	var b strings.Builder
	for s.pos < len(s.input) {
		c := s.input[s.pos]
		if isSpace(c) {
			break
		}
		if c == '\'' || c == '"' {
			// Quoted span: strip the quotes, keep the content verbatim.
			// An unterminated quote runs to end of input.
			s.pos++
			start := s.pos
			for s.pos < len(s.input) && s.input[s.pos] != c {
				s.pos++
			}
			b.WriteString(s.input[start:s.pos])
			if s.pos < len(s.input) {
				s.pos++
			}
			continue
		}
		if s.matchSeparator() != "" {
			break
		}
		if s.matchOperator(false) != "" {
			break
		}
		b.WriteByte(c)
		s.pos++
	}
	return token{kind: tokenWord, text: b.String()}, true
}

// matchOperator reports the operator starting at the current position,
// if any. Mid-word, only operators introduced by '>' or '&' terminate
// the word: "file2>out" is the word "file2" followed by ">", not a
// stderr redirect.
func (s *scanner) matchOperator(atWordStart bool) string {
	rest := s.input[s.pos:]
	for _, op := range operators {
		if !atWordStart && op[0] != '>' && op[0] != '&' {
			continue
		}
		if strings.HasPrefix(rest, op) {
			return op
		}
	}
	return ""
}

// matchSeparator reports the command separator at the current position:
// ';', '|', '&&', or a bare '&' background marker (end of input or
// followed by whitespace). A '&' glued to anything else is not a
// separator, so fd-duplication targets like "&2" stay whole words.
func (s *scanner) matchSeparator() string {
	switch s.input[s.pos] {
	case ';', '|':
		return s.input[s.pos : s.pos+1]
	case '&':
		if s.pos+1 < len(s.input) && s.input[s.pos+1] == '&' {
			return "&&"
		}
		if s.pos+1 >= len(s.input) || isSpace(s.input[s.pos+1]) {
			return "&"
		}
	}
	return ""
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
