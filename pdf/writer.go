package pdf

import (
	"bytes"
	"errors"
	"fmt"
)

// Resource names referenced by page content streams.
const (
	FontResource       = "F1"
	AlphaZeroResource  = "GS0"
	BackgroundResource = "Im0"
)

// Image is an XObject-ready raster. Data must already be encoded for Filter
// (DCTDecode passes the JPEG bytes through, FlateDecode carries zlib-packed
// samples).
type Image struct {
	Width            int
	Height           int
	ColorSpace       Name
	BitsPerComponent int
	Filter           Name
	Data             []byte
	SMask            *Image
}

// Page is one output page. Width and Height are user-space units matching the
// source raster's pixel dimensions. Content holds the finished operator
// stream referencing the standard resource names above.
type Page struct {
	Width      float64
	Height     float64
	Background *Image
	Content    []byte
}

// Document is the page-per-raster structure the exporter emits.
type Document struct {
	Pages []*Page
	// FontName is the overlay base font; empty means Helvetica.
	FontName string
}

// Bytes serializes the document: header, numbered objects, xref table,
// trailer. Objects are written in ascending number order so offsets are
// stable for a given input.
func (d *Document) Bytes() ([]byte, error) {
	if len(d.Pages) == 0 {
		return nil, errors.New("pdf: document has no pages")
	}
	fontName := d.FontName
	if fontName == "" {
		fontName = "Helvetica"
	}

	objects := map[int]Object{}
	next := 1
	alloc := func() int { n := next; next++; return n }

	catalogNum := alloc()
	pagesNum := alloc()

	fontNum := alloc()
	objects[fontNum] = Dict{
		"Type":     Name("Font"),
		"Subtype":  Name("Type1"),
		"BaseFont": Name(fontName),
		"Encoding": Name("WinAnsiEncoding"),
	}

	// Shared fully transparent fill state for the invisible text layer.
	gsNum := alloc()
	objects[gsNum] = Dict{
		"Type": Name("ExtGState"),
		"ca":   Integer(0),
		"CA":   Integer(0),
	}

	kids := Array{}
	for i, p := range d.Pages {
		if p.Width <= 0 || p.Height <= 0 {
			return nil, fmt.Errorf("pdf: page %d has degenerate size %gx%g", i, p.Width, p.Height)
		}

		resources := Dict{
			"Font":      Dict{FontResource: Ref{Num: fontNum}},
			"ExtGState": Dict{AlphaZeroResource: Ref{Num: gsNum}},
		}

		if p.Background != nil {
			imgNum, err := addImage(objects, alloc, p.Background)
			if err != nil {
				return nil, fmt.Errorf("pdf: page %d background: %w", i, err)
			}
			resources["XObject"] = Dict{BackgroundResource: Ref{Num: imgNum}}
		}

		contentNum := alloc()
		objects[contentNum] = &Stream{Dict: Dict{}, Data: p.Content}

		pageNum := alloc()
		objects[pageNum] = Dict{
			"Type":      Name("Page"),
			"Parent":    Ref{Num: pagesNum},
			"MediaBox":  Array{Integer(0), Integer(0), Real(p.Width), Real(p.Height)},
			"Resources": resources,
			"Contents":  Ref{Num: contentNum},
		}
		kids = append(kids, Ref{Num: pageNum})
	}

	objects[pagesNum] = Dict{
		"Type":  Name("Pages"),
		"Count": Integer(len(d.Pages)),
		"Kids":  kids,
	}
	objects[catalogNum] = Dict{
		"Type":  Name("Catalog"),
		"Pages": Ref{Num: pagesNum},
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")

	maxNum := next - 1
	offsets := make([]int64, maxNum+1)
	for num := 1; num <= maxNum; num++ {
		obj, ok := objects[num]
		if !ok {
			return nil, fmt.Errorf("pdf: object %d never assigned", num)
		}
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n", num)
		obj.writeTo(&buf)
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}

	buf.WriteString("trailer\n")
	Dict{
		"Size": Integer(maxNum + 1),
		"Root": Ref{Num: catalogNum},
	}.writeTo(&buf)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	return buf.Bytes(), nil
}

func addImage(objects map[int]Object, alloc func() int, img *Image) (int, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return 0, fmt.Errorf("degenerate image size %dx%d", img.Width, img.Height)
	}
	if img.Filter == "" || len(img.Data) == 0 {
		return 0, errors.New("image carries no encoded data")
	}

	dict := Dict{
		"Type":             Name("XObject"),
		"Subtype":          Name("Image"),
		"Width":            Integer(img.Width),
		"Height":           Integer(img.Height),
		"ColorSpace":       img.ColorSpace,
		"BitsPerComponent": Integer(img.BitsPerComponent),
		"Filter":           img.Filter,
	}

	if img.SMask != nil {
		maskNum, err := addImage(objects, alloc, img.SMask)
		if err != nil {
			return 0, fmt.Errorf("soft mask: %w", err)
		}
		dict["SMask"] = Ref{Num: maskNum}
	}

	num := alloc()
	objects[num] = &Stream{Dict: dict, Data: img.Data}
	return num, nil
}
