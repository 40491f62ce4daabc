// Package overlay renders assembled page records into a single PDF whose
// visible content is the page raster with an invisible, geometrically
// aligned, selectable text layer on top.
package overlay

// BoundingBox is an OCR token rectangle in source-pixel space. Coordinates
// are top-down image coordinates: y0 is the box's top edge, y1 its bottom.
type BoundingBox struct {
	X0, Y0, X1, Y1 float64
}

func (b BoundingBox) Width() float64  { return b.X1 - b.X0 }
func (b BoundingBox) Height() float64 { return b.Y1 - b.Y0 }

// Token is one recognized text span with its bounding box. Produced by the
// external OCR service and consumed read-only.
type Token struct {
	Text string
	Box  BoundingBox
}

// PageRecord holds everything needed to render one output page: the raster
// bytes, the page's pixel dimensions from its metadata, and the ordered OCR
// token list for that page.
type PageRecord struct {
	Content []byte
	Width   int
	Height  int
	Tokens  []Token
}
