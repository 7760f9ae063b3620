package rtmdet

import (
	"image"

	"rtm-pose-go/pkg/utils"
)

// decodeDets converts raw "dets"/"labels" buffers into boxes scaled back
// to source-image coordinates. Entries under the score threshold are
// skipped, and boxes that collapse to nothing after clamping are dropped.
func decodeDets(dets []float32, labels []int64, score, xFactor, yFactor float32, imgW, imgH int) (
	boxes []image.Rectangle,
	scores []float32,
	classes []int,
) {
	num := len(dets) / 5
	if len(labels) < num {
		num = len(labels)
	}

	for i := 0; i < num; i++ {
		conf := dets[i*5+4]
		if conf < score {
			continue
		}

		x1 := utils.Clamp(dets[i*5+0]*xFactor, imgW)
		y1 := utils.Clamp(dets[i*5+1]*yFactor, imgH)
		x2 := utils.Clamp(dets[i*5+2]*xFactor, imgW)
		y2 := utils.Clamp(dets[i*5+3]*yFactor, imgH)

		box := image.Rect(x1, y1, x2, y2)
		if box.Dx() == 0 || box.Dy() == 0 {
			continue
		}

		boxes = append(boxes, box)
		scores = append(scores, conf)
		classes = append(classes, int(labels[i]))
	}
	return boxes, scores, classes
}
