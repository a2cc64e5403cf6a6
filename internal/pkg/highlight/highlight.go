// Package highlight turns source code into class-annotated HTML with chroma.
package highlight

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultLanguage is used when a code block carries no language tag.
const DefaultLanguage = "plaintext"

// DefaultStyle is the chroma style used for inline stylesheets.
const DefaultStyle = "github"

var formatter = chromahtml.New(chromahtml.WithClasses(true), chromahtml.PreventSurroundingPre(true))

// Code highlights code for language. Unknown languages fall back to plain
// text; the result is the inner markup of a <code> element.
func Code(code, language string) (string, error) {
	lexer := lexerFor(language)
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenise %s: %w", language, err)
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, styles.Fallback, it); err != nil {
		return "", fmt.Errorf("format %s: %w", language, err)
	}
	return buf.String(), nil
}

// Stylesheet returns the CSS rules for the classes emitted by Code.
func Stylesheet(style string) (string, error) {
	s := styles.Get(style)
	if s == nil {
		s = styles.Fallback
	}
	var buf bytes.Buffer
	if err := formatter.WriteCSS(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Known reports whether chroma has a lexer for language.
func Known(language string) bool {
	return lexers.Get(strings.TrimSpace(language)) != nil
}

// Normalize returns the language tag stored on a code block.
func Normalize(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return DefaultLanguage
	}
	return language
}

func lexerFor(language string) chroma.Lexer {
	lexer := lexers.Get(Normalize(language))
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}
