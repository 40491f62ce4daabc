package overlay

import (
	"strings"

	"github.com/wudi/docexport/coords"
)

// Options configures the overlay text layer.
type Options struct {
	// FontName is a standard-14 font name. Default Helvetica.
	FontName string
	// BaseFontSize is the unscaled font size the text is measured at.
	// Default 10.
	BaseFontSize float64
	// VerticalAdjustmentFactor nudges the baseline up inside the box by
	// factor*BaseFontSize to visually center the run. Default 0.2.
	VerticalAdjustmentFactor float64
}

func (o Options) withDefaults() Options {
	if o.FontName == "" {
		o.FontName = "Helvetica"
	}
	if o.BaseFontSize <= 0 {
		o.BaseFontSize = 10
	}
	if o.VerticalAdjustmentFactor == 0 {
		o.VerticalAdjustmentFactor = 0.2
	}
	return o
}

// Placement is the computed geometry for one token: a composed
// scale-then-translate matrix and the local baseline rise the text is drawn
// at. It is independent of draw order and renderer state.
type Placement struct {
	Matrix coords.Matrix
	Rise   float64
}

// placeToken fits a text run measured at textWidth into the token's bounding
// box on a page of the given height.
//
// Boxes arrive in top-down image coordinates while PDF user space has its
// origin at the bottom left, so the box's bottom edge y1 maps to the baseline
// reference pageHeight-y1. The horizontal scale stretches the measured run to
// the box width; a zero measured width (whitespace-only or unmeasurable
// glyphs) keeps scale 1 to avoid dividing by zero. The vertical scale maps
// the base font size onto the box height.
func placeToken(box BoundingBox, textWidth, pageHeight float64, opts Options) Placement {
	xScale := 1.0
	if textWidth > 0 {
		xScale = box.Width() / textWidth
	}
	yScale := box.Height() / opts.BaseFontSize
	yBaseline := pageHeight - box.Y1

	return Placement{
		Matrix: coords.Scale(xScale, yScale).Multiply(coords.Translate(box.X0, yBaseline)),
		Rise:   opts.BaseFontSize * opts.VerticalAdjustmentFactor,
	}
}

// skippable reports whether a token draws nothing: empty or whitespace-only
// text is dropped before any geometry is computed.
func skippable(tok Token) bool {
	return strings.TrimSpace(tok.Text) == ""
}
