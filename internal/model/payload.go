package model

// TextFormat is the rendering hint for a Formatted payload.
type TextFormat string

const (
	FormatPlain    TextFormat = "plain"
	FormatMarkdown TextFormat = "markdown"
	FormatHTML     TextFormat = "html"
)

func (f TextFormat) Valid() bool {
	switch f {
	case FormatPlain, FormatMarkdown, FormatHTML:
		return true
	default:
		return false
	}
}

// Payload is a closed sum type: either Plain text or Formatted text with
// an explicit rendering format. Kind discriminates the variant on the wire.
type Payload struct {
	Kind   string     `json:"kind"`
	Text   string     `json:"text"`
	Format TextFormat `json:"format,omitempty"`
}

func PlainPayload(text string) Payload {
	return Payload{Kind: "plain", Text: text, Format: FormatPlain}
}

func FormattedPayload(text string, format TextFormat) Payload {
	return Payload{Kind: "formatted", Text: text, Format: format}
}

// EffectiveFormat returns the rendering format regardless of variant,
// defaulting Plain-kind payloads to FormatPlain.
func (p Payload) EffectiveFormat() TextFormat {
	if p.Kind == "formatted" && p.Format.Valid() {
		return p.Format
	}
	return FormatPlain
}
