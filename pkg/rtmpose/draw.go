package rtmpose

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// CocoKeypointNames lists the COCO 17-keypoint layout in model order.
var CocoKeypointNames = [17]string{
	"nose",
	"left_eye", "right_eye",
	"left_ear", "right_ear",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
}

// skeleton pairs keypoint indices to draw limb lines between (COCO layout).
var skeleton = [][2]int{
	{15, 13}, {13, 11}, {16, 14}, {14, 12}, {11, 12},
	{5, 11}, {6, 12}, {5, 6},
	{5, 7}, {6, 8}, {7, 9}, {8, 10},
	{1, 2}, {0, 1}, {0, 2}, {1, 3}, {2, 4}, {3, 5}, {4, 6},
}

var (
	boxColor  = color.RGBA{200, 200, 200, 0}
	headColor = color.RGBA{200, 200, 0, 0}
	armColor  = color.RGBA{0, 0, 200, 0}
	legColor  = color.RGBA{0, 200, 0, 0}
)

// limbColor picks a color per skeleton segment by body region.
func limbColor(pair [2]int) color.RGBA {
	switch {
	case pair[0] <= 4 && pair[1] <= 6:
		return headColor
	case pair[0] >= 13 || pair[1] >= 13:
		return legColor
	default:
		return armColor
	}
}

// Draw renders detection boxes and skeletons for all poses onto img.
// Keypoints that failed the score threshold are skipped.
func Draw(img *gocv.Mat, poses []Pose, thickness, radius int) {
	if thickness == 0 {
		thickness = 2
	}
	if radius == 0 {
		radius = 3
	}

	for _, pose := range poses {
		gocv.Rectangle(img, pose.Box, boxColor, thickness)

		for _, pair := range skeleton {
			if pair[0] >= len(pose.Keypoints) || pair[1] >= len(pose.Keypoints) {
				continue
			}
			a, b := pose.Keypoints[pair[0]], pose.Keypoints[pair[1]]
			if !a.Valid() || !b.Valid() {
				continue
			}
			gocv.Line(img,
				image.Pt(int(a.X), int(a.Y)),
				image.Pt(int(b.X), int(b.Y)),
				limbColor(pair), thickness)
		}

		for _, kp := range pose.Keypoints {
			if !kp.Valid() {
				continue
			}
			gocv.Circle(img, image.Pt(int(kp.X), int(kp.Y)), radius, headColor, -1)
		}
	}
}
