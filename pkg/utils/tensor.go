package utils

import "image"

// PackNCHW converts interleaved 8-bit HWC pixels (BGR source order, as
// produced by OpenCV) into a normalized planar NCHW float buffer. order
// maps destination channel to source channel, so {0, 1, 2} keeps BGR and
// {2, 1, 0} converts to RGB. mean and std are given in destination
// channel order.
func PackNCHW(pixels []uint8, width, height int, order [3]int, mean, std [3]float32) []float32 {
	plane := width * height
	out := make([]float32, 3*plane)
	for i := 0; i < plane; i++ {
		for c := 0; c < 3; c++ {
			out[c*plane+i] = (float32(pixels[i*3+order[c]]) - mean[c]) / std[c]
		}
	}
	return out
}

// PackImageNCHW fills a normalized planar NCHW float buffer from an
// image.Image whose bounds already match width x height. Source channel
// indices are RGB (0, 1, 2); order maps destination channel to source
// channel, so {2, 1, 0} produces BGR planes.
func PackImageNCHW(img image.Image, width, height int, order [3]int, mean, std [3]float32) []float32 {
	plane := width * height
	out := make([]float32, 3*plane)
	min := img.Bounds().Min
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(min.X+x, min.Y+y).RGBA()
			rgb := [3]float32{float32(r >> 8), float32(g >> 8), float32(b >> 8)}
			i := y*width + x
			for c := 0; c < 3; c++ {
				out[c*plane+i] = (rgb[order[c]] - mean[c]) / std[c]
			}
		}
	}
	return out
}
