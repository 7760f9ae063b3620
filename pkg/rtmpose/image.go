package rtmpose

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"rtm-pose-go/pkg/utils"
)

// PredictBoxesImage is the OpenCV-free counterpart of PredictBoxes used by
// the HTTP service: crops come from a decoded image.Image via imaging.
func (s *Session) PredictBoxesImage(img image.Image, boxes []image.Rectangle, scores []float32) ([]Pose, error) {
	bounds := img.Bounds()
	aspect := float64(s.inputW) / float64(s.inputH)

	poses := make([]Pose, 0, len(boxes))
	for i, box := range boxes {
		crop := ExpandBox(box, aspect, DefaultPaddingRatio).Intersect(bounds)
		if crop.Dx() == 0 || crop.Dy() == 0 {
			continue
		}

		cropped := imaging.Crop(img, crop)
		resized := imaging.Resize(cropped, s.inputW, s.inputH, imaging.Linear)
		// imaging yields RGB; the model wants RGB planes
		input := utils.PackImageNCHW(resized, s.inputW, s.inputH, [3]int{0, 1, 2}, inputMean, inputStd)

		simccX, simccY, err := s.runModel(input)
		if err != nil {
			return nil, fmt.Errorf("pose for box %v: %w", box, err)
		}

		kps := decodeSimCC(simccX, simccY, s.numKeypoints, s.xBins, s.yBins, s.splitRatio, s.kptScore)
		xScale := float32(crop.Dx()) / float32(s.inputW)
		yScale := float32(crop.Dy()) / float32(s.inputH)
		for k := range kps {
			if !kps[k].Valid() {
				continue
			}
			kps[k].X = float32(crop.Min.X) + kps[k].X*xScale
			kps[k].Y = float32(crop.Min.Y) + kps[k].Y*yScale
		}

		pose := Pose{Box: box, Keypoints: kps}
		if i < len(scores) {
			pose.Score = scores[i]
		}
		poses = append(poses, pose)
	}
	return poses, nil
}
