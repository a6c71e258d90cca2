package detect

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrUndecodable = errors.New("image could not be decoded")

var padColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// DecodeImage decodes data into an opaque RGBA image and reports the
// detected format.
func DecodeImage(data []byte) (*image.RGBA, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, "", fmt.Errorf("%w: empty image", ErrUndecodable)
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst, format, nil
}

// letterbox scales img to fit a size×size square keeping its aspect ratio,
// pads the rest with gray and returns the pixels as a normalized CHW float
// tensor in RGB order.
func letterbox(img image.Image, size int) []float32 {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	r := math.Min(float64(size)/h, float64(size)/w)

	nw := max(1, int(math.Round(w*r)))
	nh := max(1, int(math.Round(h*r)))
	left := int(math.Round(float64(size-nw)/2 - 0.1))
	top := int(math.Round(float64(size-nh)/2 - 0.1))

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: padColor}, image.Point{}, draw.Src)
	xdraw.BiLinear.Scale(canvas, image.Rect(left, top, left+nw, top+nh), img, b, xdraw.Src, nil)

	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := canvas.PixOffset(x, y)
			j := y*size + x
			out[j] = float32(canvas.Pix[i]) / 255
			out[plane+j] = float32(canvas.Pix[i+1]) / 255
			out[2*plane+j] = float32(canvas.Pix[i+2]) / 255
		}
	}
	return out
}
