package overlay

import (
	"bytes"
	"fmt"

	"github.com/wudi/docexport/observability"
	"github.com/wudi/docexport/pdf"
)

// Renderer turns assembled page records into a finished PDF artifact. It is
// safe for concurrent use; all state lives in the arguments.
type Renderer struct {
	opts Options
	log  observability.Logger
}

func NewRenderer(opts Options, log observability.Logger) *Renderer {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Renderer{opts: opts.withDefaults(), log: log}
}

// Render emits one output page per record, in input order. Each page draws
// the raster scaled to fill the media box, then the token layer with a fully
// transparent fill so the text is selectable but never visible.
func (r *Renderer) Render(pages []PageRecord) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("overlay: no pages to render")
	}

	doc := &pdf.Document{FontName: r.opts.FontName}
	for i, p := range pages {
		if p.Width <= 0 || p.Height <= 0 {
			return nil, fmt.Errorf("overlay: page %d has degenerate size %dx%d", i, p.Width, p.Height)
		}
		bg, err := decodeRaster(p.Content)
		if err != nil {
			return nil, fmt.Errorf("overlay: page %d: %w", i, err)
		}

		page := &pdf.Page{
			Width:      float64(p.Width),
			Height:     float64(p.Height),
			Background: bg,
			Content:    r.pageContent(p),
		}
		doc.Pages = append(doc.Pages, page)
	}

	data, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	r.log.Debug("rendered overlay document",
		observability.Int("pages", len(pages)),
		observability.Int(observability.MetricArtifactBytes, len(data)))
	return data, nil
}

// pageContent builds the operator stream for one page: the background image
// draw followed by one invisible text run per non-empty token.
func (r *Renderer) pageContent(p PageRecord) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "q\n%s 0 0 %s 0 0 cm\n/%s Do\nQ\n",
		pdf.FormatReal(float64(p.Width)), pdf.FormatReal(float64(p.Height)),
		pdf.BackgroundResource)

	for _, tok := range p.Tokens {
		if skippable(tok) {
			continue
		}
		width := StringWidth(tok.Text, r.opts.FontName, r.opts.BaseFontSize)
		pl := placeToken(tok.Box, width, float64(p.Height), r.opts)

		buf.WriteString("q\n")
		fmt.Fprintf(&buf, "/%s gs\n", pdf.AlphaZeroResource)
		buf.WriteString("0 0 0 rg\n")
		for i, v := range pl.Matrix {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(pdf.FormatReal(v))
		}
		buf.WriteString(" cm\n")
		buf.WriteString("BT\n")
		fmt.Fprintf(&buf, "/%s %s Tf\n", pdf.FontResource, pdf.FormatReal(r.opts.BaseFontSize))
		fmt.Fprintf(&buf, "0 %s Td\n", pdf.FormatReal(pl.Rise))
		writeTextShow(&buf, tok.Text)
		buf.WriteString("ET\nQ\n")
	}
	return buf.Bytes()
}

// winAnsiOverrides maps the code points WinAnsi places in 0x80-0x9F, where
// the encoding diverges from Latin-1.
var winAnsiOverrides = map[rune]byte{
	'€': 0x80, // euro sign
	'‚': 0x82,
	'ƒ': 0x83,
	'„': 0x84,
	'…': 0x85, // horizontal ellipsis
	'†': 0x86,
	'‡': 0x87,
	'ˆ': 0x88,
	'‰': 0x89,
	'Š': 0x8A,
	'‹': 0x8B,
	'Œ': 0x8C,
	'Ž': 0x8E,
	'‘': 0x91,
	'’': 0x92,
	'“': 0x93,
	'”': 0x94,
	'•': 0x95,
	'–': 0x96,
	'—': 0x97,
	'˜': 0x98,
	'™': 0x99,
	'š': 0x9A,
	'›': 0x9B,
	'œ': 0x9C,
	'ž': 0x9E,
	'Ÿ': 0x9F,
}

// encodeWinAnsi narrows a rune to the font's single-byte encoding. ASCII and
// the Latin-1 range 0xA0-0xFF carry over directly; 0x80-0x9F is remapped per
// WinAnsi; everything else is replaced.
func encodeWinAnsi(r rune) byte {
	switch {
	case r < 0x80:
		return byte(r)
	case r >= 0xA0 && r <= 0xFF:
		return byte(r)
	}
	if b, ok := winAnsiOverrides[r]; ok {
		return b
	}
	return '?'
}

// writeTextShow emits a literal string show op. Text is narrowed to the
// single-byte font encoding; code points outside it are replaced.
func writeTextShow(buf *bytes.Buffer, text string) {
	buf.WriteByte('(')
	for _, r := range text {
		b := encodeWinAnsi(r)
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteString(") Tj\n")
}
