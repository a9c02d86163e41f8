// internal/morse/table.go

// Package morse holds the ITU Morse code table, shared by the decoder
// and the text sender. Patterns are strings of '.' and '-'.
package morse

import "strings"

// patterns maps characters to their ITU element patterns.
var patterns = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..",

	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",

	'.': ".-.-.-", ',': "--..--", '?': "..--..", '\'': ".----.",
	'!': "-.-.--", '/': "-..-.", '(': "-.--.", ')': "-.--.-",
	'&': ".-...", ':': "---...", ';': "-.-.-.", '=': "-...-",
	'+': ".-.-.", '-': "-....-", '_': "..--.-", '"': ".-..-.",
	'$': "...-..-", '@': ".--.-.",
}

// prosigns maps procedural signals (written <XX>) to their run-together
// patterns.
var prosigns = map[string]string{
	"<AR>": ".-.-.",   // end of message
	"<AS>": ".-...",   // wait
	"<BK>": "-...-.-", // break
	"<BT>": "-...-",   // new paragraph
	"<KA>": "-.-.-",   // attention
	"<KN>": "-.--.",   // go ahead, named station only
	"<SK>": "...-.-",  // end of contact
	"<SN>": "...-.",   // understood
	"<SOS>": "...---...",
}

// reverse maps patterns back to characters, built once at init.
// Patterns in the table are unique; prosigns deliberately stay out so
// the decoder emits plain characters.
var reverse = func() map[string]rune {
	m := make(map[string]rune, len(patterns))
	for r, pat := range patterns {
		m[pat] = r
	}
	return m
}()

// Pattern returns the element pattern for a character, or "" if the
// character has no Morse representation. Lowercase is accepted.
func Pattern(r rune) string {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	return patterns[r]
}

// Lookup decodes an element pattern to its character. Returns 0 for an
// unknown pattern.
func Lookup(pattern string) rune {
	return reverse[pattern]
}

// Prosign returns the pattern for a procedural signal like "<AR>", or
// "" if unknown.
func Prosign(name string) string {
	return prosigns[strings.ToUpper(name)]
}

// MatchProsign scans text starting at a '<' and returns the prosign's
// pattern plus the number of bytes consumed, or ("", 0) if text does
// not begin with a known prosign.
func MatchProsign(text string) (pattern string, n int) {
	if len(text) == 0 || text[0] != '<' {
		return "", 0
	}
	end := strings.IndexByte(text, '>')
	if end < 0 {
		return "", 0
	}
	pat := Prosign(text[:end+1])
	if pat == "" {
		return "", 0
	}
	return pat, end + 1
}
