// Filter DSL tokenizer: key:value pairs with double-quoted values spanning spaces
// The same parser feeds the in-memory matcher and every live-backend translation
package query

import (
	"strings"
	"unicode"
)

// Pair is one key:value term of a filter query.
type Pair struct {
	Key   string
	Value string
}

// token is one whitespace-delimited word with its quotes removed. colon is the
// byte offset of the first colon outside quotes, or -1.
type token struct {
	text  string
	colon int
}

// Parse splits a filter query into ordered pairs.
//
// Whitespace separates tokens except inside double quotes, which are removed.
// A token with a colon outside quotes starts a new key; tokens without one are
// appended, space-joined, to the current key's value. Tokens before the first
// key are ignored. Blank input yields no pairs.
func Parse(q string) []Pair {
	var pairs []Pair
	var values []string
	inKey := false

	flush := func() {
		if inKey {
			pairs[len(pairs)-1].Value = strings.Join(values, " ")
		}
		values = values[:0]
	}

	for _, tok := range tokenize(q) {
		if tok.colon >= 0 {
			flush()
			pairs = append(pairs, Pair{Key: tok.text[:tok.colon]})
			inKey = true
			if rest := tok.text[tok.colon+1:]; rest != "" {
				values = append(values, rest)
			}
			continue
		}
		if inKey {
			values = append(values, tok.text)
		}
	}
	flush()

	return pairs
}

func tokenize(q string) []token {
	var (
		tokens  []token
		b       strings.Builder
		quoted  bool
		started bool
		colon   = -1
	)

	emit := func() {
		if started {
			tokens = append(tokens, token{text: b.String(), colon: colon})
		}
		b.Reset()
		started = false
		colon = -1
	}

	for _, r := range q {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case unicode.IsSpace(r) && !quoted:
			emit()
		default:
			if r == ':' && !quoted && colon < 0 {
				colon = b.Len()
			}
			b.WriteRune(r)
			started = true
		}
	}
	emit()

	return tokens
}
