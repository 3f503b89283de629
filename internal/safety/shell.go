package safety

import (
	"strings"
)

// splitShellCommands splits a command line into its simple commands on the
// control operators ;, &&, ||, |, & and newlines. Quoted text, backticks and
// $( ) substitutions are never split.
func splitShellCommands(command string) []string {
	var segments []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	inBacktick := false
	depth := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			segments = append(segments, s)
		}
		current.Reset()
	}

	for i := 0; i < len(command); i++ {
		ch := command[i]

		if ch == '\\' && !inSingleQuote && i+1 < len(command) {
			current.WriteByte(ch)
			current.WriteByte(command[i+1])
			i++
			continue
		}

		switch {
		case ch == '\'' && !inDoubleQuote && !inBacktick:
			inSingleQuote = !inSingleQuote
		case ch == '"' && !inSingleQuote && !inBacktick:
			inDoubleQuote = !inDoubleQuote
		case ch == '`' && !inSingleQuote:
			inBacktick = !inBacktick
		case inSingleQuote || inDoubleQuote || inBacktick:
		case ch == '(':
			depth++
		case ch == ')':
			if depth > 0 {
				depth--
			}
		case depth > 0:
		case ch == ';' || ch == '\n':
			flush()
			continue
		case ch == '&' || ch == '|':
			// redirections such as 2>&1 and >| keep the operator
			if i > 0 && (command[i-1] == '>' || command[i-1] == '<') {
				break
			}
			if ch == '&' && i+1 < len(command) && command[i+1] == '>' {
				break
			}
			if i+1 < len(command) && command[i+1] == ch {
				i++
			}
			flush()
			continue
		}

		current.WriteByte(ch)
	}
	flush()

	return segments
}

// parseTokensStripQuotes parses a command string into tokens, stripping quotes.
func parseTokensStripQuotes(command string) []string {
	return parseTokens(command, false)
}

// parseTokens parses a command string into tokens, respecting quoted strings.
// If keepQuotes is true, quotes are included in tokens; otherwise they are stripped.
func parseTokens(command string, keepQuotes bool) []string {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false

	for i := 0; i < len(command); i++ {
		ch := command[i]

		switch ch {
		case '\'':
			if !inDoubleQuote {
				inSingleQuote = !inSingleQuote
				if keepQuotes {
					current.WriteByte(ch)
				}
			} else {
				current.WriteByte(ch)
			}
		case '"':
			if !inSingleQuote {
				inDoubleQuote = !inDoubleQuote
				if keepQuotes {
					current.WriteByte(ch)
				}
			} else {
				current.WriteByte(ch)
			}
		case ' ', '\t', '\n', '\r':
			if !inSingleQuote && !inDoubleQuote {
				if current.Len() > 0 {
					tokens = append(tokens, current.String())
					current.Reset()
				}
			} else {
				current.WriteByte(ch)
			}
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}
