// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package exposure

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"periph.io/x/lithiumhome/devicecore"
)

// previewImage is an 8-bit grayscale view over a Frame's raw pixel buffer,
// downsampling 16-bit samples by taking the high byte. It is the
// lithiumhome analogue of node/camera.go's imageRGB24: an
// owned buffer wrapped just enough to satisfy image.Image for JPEG
// encoding, nothing more.
type previewImage struct {
	w, h int
	pix  []byte // one byte per pixel, row-major
}

func (p *previewImage) ColorModel() color.Model { return color.GrayModel }
func (p *previewImage) Bounds() image.Rectangle { return image.Rect(0, 0, p.w, p.h) }
func (p *previewImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= p.w || y >= p.h {
		return color.Gray{}
	}
	return color.Gray{Y: p.pix[y*p.w+x]}
}

// newPreviewImage downsamples frame's pixel buffer to 8 bits/pixel.
func newPreviewImage(frame *devicecore.Frame) (*previewImage, error) {
	if len(frame.Pix) != frame.Size() {
		return nil, fmt.Errorf("exposure: frame pixel buffer is %d bytes, want %d", len(frame.Pix), frame.Size())
	}
	out := &previewImage{w: frame.Width, h: frame.Height, pix: make([]byte, frame.Width*frame.Height)}
	bpp := frame.BytesPerPixel()
	for i := 0; i < frame.Width*frame.Height; i++ {
		if bpp == 1 {
			out.pix[i] = frame.Pix[i]
			continue
		}
		// Big-endian 16-bit sample: take the high byte.
		out.pix[i] = frame.Pix[i*2]
	}
	return out, nil
}

// addTimestamp draws ts onto img in the bottom-left corner using a fixed
// bitmap font, adapted from node/camera.go's addTimestamp: there it
// stamped time.Now() on a live RGB24 frame for an ESPHome camera stream
// preview; here it stamps the frame's own StartedAt instead, since a
// preview is generated after the exposure completes rather than live.
func addTimestamp(img draw.Image, c color.Color, ts string) {
	b := img.Bounds()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot: fixed.Point26_6{
			X: fixed.I(4),
			Y: fixed.I(b.Dy() - 4),
		},
	}
	d.DrawString(ts)
}

// Preview renders an 8-bit JPEG preview of frame with an exposure-
// timestamp overlay, for UI/console consumption. quality follows
// image/jpeg's 1-100 scale; 0 selects jpeg.DefaultQuality.
func Preview(frame *devicecore.Frame, quality int) ([]byte, error) {
	src, err := newPreviewImage(frame)
	if err != nil {
		return nil, err
	}
	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, image.Point{}, draw.Src)
	addTimestamp(rgba, color.RGBA{R: 0, G: 255, B: 0, A: 255}, frame.StartedAt.UTC().Format("2006-01-02T15:04:05Z"))

	if quality <= 0 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("exposure: encode preview jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
