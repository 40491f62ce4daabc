package overlay

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	_ "image/gif" // register raster decoders
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/wudi/docexport/pdf"
)

// decodeRaster turns page content bytes into an XObject-ready image. JPEG
// rasters pass straight through as DCTDecode streams; every other supported
// format is decoded and re-packed as flate-compressed RGB samples with a
// soft mask when the source carries transparency.
func decodeRaster(data []byte) (*pdf.Image, error) {
	if isJPEG(data) {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("overlay: read jpeg header: %w", err)
		}
		colorSpace := pdf.Name("DeviceRGB")
		switch cfg.ColorModel {
		case color.GrayModel:
			colorSpace = "DeviceGray"
		case color.CMYKModel:
			colorSpace = "DeviceCMYK"
		}
		return &pdf.Image{
			Width:            cfg.Width,
			Height:           cfg.Height,
			ColorSpace:       colorSpace,
			BitsPerComponent: 8,
			Filter:           "DCTDecode",
			Data:             data,
		}, nil
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("overlay: decode raster: %w", err)
	}
	img, err := fromImage(src)
	if err != nil {
		return nil, fmt.Errorf("overlay: convert %s raster: %w", format, err)
	}
	return img, nil
}

func isJPEG(data []byte) bool {
	return len(data) > 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// fromImage converts a decoded image into raw RGB samples plus an optional
// gray soft mask, both flate-compressed.
func fromImage(src image.Image) (*pdf.Image, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("degenerate raster %dx%d", w, h)
	}

	// Non-premultiplied alpha exposes the raw channel values.
	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)

	pixels := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	hasAlpha := false
	for i := 0; i < w*h; i++ {
		offset := i * 4
		pixels = append(pixels, nrgba.Pix[offset], nrgba.Pix[offset+1], nrgba.Pix[offset+2])
		a := nrgba.Pix[offset+3]
		alpha = append(alpha, a)
		if a < 255 {
			hasAlpha = true
		}
	}

	packed, err := flatePack(pixels)
	if err != nil {
		return nil, err
	}
	img := &pdf.Image{
		Width:            w,
		Height:           h,
		ColorSpace:       "DeviceRGB",
		BitsPerComponent: 8,
		Filter:           "FlateDecode",
		Data:             packed,
	}

	if hasAlpha {
		packedAlpha, err := flatePack(alpha)
		if err != nil {
			return nil, err
		}
		img.SMask = &pdf.Image{
			Width:            w,
			Height:           h,
			ColorSpace:       "DeviceGray",
			BitsPerComponent: 8,
			Filter:           "FlateDecode",
			Data:             packedAlpha,
		}
	}
	return img, nil
}

func flatePack(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("flate pack: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flate pack: %w", err)
	}
	return buf.Bytes(), nil
}
