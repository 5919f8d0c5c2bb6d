package build

import (
	"strings"

	"github.com/trussworks/ephemeral-env/errors"
)

const tokenSeparator = "/"

// Token identifies the chat thread a build reports back to.
type Token struct {
	Channel string
	TS      string
}

// String encodes the token as "<channel>/<ts>".
func (t Token) String() string {
	return t.Channel + tokenSeparator + t.TS
}

// NewToken encodes channel and ts. Neither may be empty or contain "/", so
// ParseToken always recovers them exactly.
func NewToken(channel, ts string) (string, error) {
	fields := []struct{ name, value string }{{"channel", channel}, {"ts", ts}}
	for _, f := range fields {
		if f.value == "" {
			return "", errors.Newf(errors.CodeInvalidInput, "build token %s cannot be empty", f.name)
		}
		if strings.Contains(f.value, tokenSeparator) {
			return "", errors.Newf(errors.CodeInvalidInput, "build token %s %q contains %q", f.name, f.value, tokenSeparator)
		}
	}
	return Token{Channel: channel, TS: ts}.String(), nil
}

// ParseToken decodes a token produced by NewToken.
func ParseToken(s string) (Token, error) {
	channel, ts, ok := strings.Cut(s, tokenSeparator)
	if !ok || channel == "" || ts == "" || strings.Contains(ts, tokenSeparator) {
		return Token{}, errors.Newf(errors.CodeInvalidInput, "malformed build token %q", s)
	}
	return Token{Channel: channel, TS: ts}, nil
}
