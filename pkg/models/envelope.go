package models

import (
	"github.com/mailru/easyjson/jlexer"
)

// envelopeHead is the part of a frame needed to pick its variant.
type envelopeHead struct {
	Type string
}

// readEnvelopeHead scans the top-level object for "type" and skips every
// other value without decoding it.
func readEnvelopeHead(in *jlexer.Lexer, out *envelopeHead) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if key == "type" && !in.IsNull() {
			out.Type = in.String()
		} else {
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	in.Consumed()
}

func (v *envelopeHead) UnmarshalEasyJSON(l *jlexer.Lexer) {
	readEnvelopeHead(l, v)
}
