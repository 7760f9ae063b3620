package utils

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// DrawBox draws a detection rectangle with a class label attached to its
// top-left corner.
func DrawBox(
	img *gocv.Mat,
	name string,
	confidence float32,
	rect image.Rectangle,
	clr color.RGBA,
	fontScale float64,
	thickness int,
	fontFace gocv.HersheyFont,
) {
	if thickness == 0 {
		thickness = 2
	}
	gocv.Rectangle(img, rect, clr, thickness)
	DrawLabel(img, name, confidence, rect, clr, fontScale, thickness, fontFace)
}

// DrawLabel draws "name (score%)" on a filled background above rect.
func DrawLabel(
	img *gocv.Mat,
	name string,
	confidence float32,
	rect image.Rectangle,
	clr color.RGBA,
	fontScale float64,
	thickness int,
	fontFace gocv.HersheyFont,
) {
	if fontScale == 0 {
		fontScale = 0.8
	}
	if thickness == 0 {
		thickness = 2
	}
	if fontFace == 0 {
		fontFace = gocv.FontHersheyComplex
	}

	var label string
	if name == "" {
		label = fmt.Sprintf("%.2f%%", confidence*100)
	} else {
		label = fmt.Sprintf("%s (%.2f%%)", name, confidence*100)
	}
	labelSize := gocv.GetTextSize(label, fontFace, fontScale, thickness)
	padding := 16
	border := padding / 2
	x1 := rect.Min.X
	y2 := rect.Min.Y
	x2 := x1 + labelSize.X
	y1 := y2 - labelSize.Y

	// label background, then text
	gocv.Rectangle(img, image.Rect(x1, y1, x2+padding, y2+padding), clr, -1)
	gocv.Rectangle(img, image.Rect(x1+border, y1+border, x2+border, y2+border), color.RGBA{}, -1)
	gocv.PutText(img, label, image.Pt(x1+1, y2+border/2), fontFace, fontScale, color.RGBA{255, 255, 255, 0}, thickness)
}
