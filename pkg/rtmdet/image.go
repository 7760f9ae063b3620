package rtmdet

import (
	"image"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"rtm-pose-go/pkg/utils"
)

// PredictImage runs detection on a decoded image.Image. This is the
// OpenCV-free input path used by the HTTP service, where frames arrive as
// JPEG/PNG bodies rather than capture Mats.
func (s *Session) PredictImage(img image.Image) ([]Detection, error) {
	imgW := img.Bounds().Dx()
	imgH := img.Bounds().Dy()

	resized := imaging.Resize(img, s.inputW, s.inputH, imaging.Linear)
	// destination keeps BGR plane order to match the capture path
	input := utils.PackImageNCHW(resized, s.inputW, s.inputH, [3]int{2, 1, 0}, inputMean, inputStd)

	dets, labels, err := s.runModel(input)
	if err != nil {
		return nil, err
	}

	xFactor := float32(imgW) / float32(s.inputW)
	yFactor := float32(imgH) / float32(s.inputH)

	boxes, scores, classes := decodeDets(dets, labels, s.score, xFactor, yFactor, imgW, imgH)
	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, scores, s.score, s.iou)
	objs := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		objs = append(objs, Detection{
			Box:     boxes[idx],
			Score:   scores[idx],
			ClassID: classes[idx],
			Label:   s.label(classes[idx]),
		})
	}
	return objs, nil
}
