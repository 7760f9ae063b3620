// Package rtmpose runs RTMPose top-down 2D keypoint estimation over an
// mmdeploy-exported ONNX model with a SimCC head. The model consumes a
// person crop and emits two coordinate-classification tensors, "simcc_x"
// [1, K, W*r] and "simcc_y" [1, K, H*r], where r is the SimCC split ratio.
package rtmpose

import (
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"
	ort "github.com/yam8511/go-onnxruntime"
	"gocv.io/x/gocv"

	"rtm-pose-go/pkg/utils"
)

const (
	// DefaultKeypointScoreThreshold marks keypoints below it as invalid.
	DefaultKeypointScoreThreshold = 0.3
	// DefaultPaddingRatio expands detection boxes before cropping, the
	// standard top-down margin.
	DefaultPaddingRatio = 1.25
)

// RTMPose is trained on RGB input with this per-channel normalization.
var (
	inputMean = [3]float32{123.675, 116.28, 103.53}
	inputStd  = [3]float32{58.395, 57.12, 57.375}
)

// Keypoint is one joint in source-image coordinates. Keypoints under the
// score threshold keep their score but carry (-1, -1) coordinates.
type Keypoint struct {
	X, Y, Score float32
}

// Valid reports whether the keypoint passed the score threshold.
func (k Keypoint) Valid() bool { return k.X >= 0 && k.Y >= 0 }

// Pose is the keypoint set estimated for one detection box.
type Pose struct {
	Box       image.Rectangle
	Score     float32
	Keypoints []Keypoint
}

// Session wraps an ONNX Runtime session for one RTMPose model.
type Session struct {
	session      *ort.Session
	kptScore     float32
	inputW       int
	inputH       int
	numKeypoints int
	xBins        int
	yBins        int
	splitRatio   float32
}

// New loads the pose model. A zero kptScore falls back to the default
// keypoint score threshold.
func New(sdk *ort.ORT_SDK, onnxFile string, kptScore float32, useGPU bool) (*Session, error) {
	sess, err := ort.NewSessionWithONNX(sdk, onnxFile, useGPU)
	if err != nil {
		return nil, fmt.Errorf("load pose model %s: %w", onnxFile, err)
	}

	input0, ok := sess.Input("input")
	if !ok {
		sess.Release()
		return nil, fmt.Errorf("pose model %s: model has no input named %q", onnxFile, "input")
	}
	simccX, ok := sess.Output("simcc_x")
	if !ok {
		sess.Release()
		return nil, fmt.Errorf("pose model %s: model has no output named %q", onnxFile, "simcc_x")
	}
	simccY, ok := sess.Output("simcc_y")
	if !ok {
		sess.Release()
		return nil, fmt.Errorf("pose model %s: model has no output named %q", onnxFile, "simcc_y")
	}

	if kptScore == 0 {
		kptScore = DefaultKeypointScoreThreshold
	}

	inputW := int(input0.Shape[3])
	inputH := int(input0.Shape[2])

	return &Session{
		session:      sess,
		kptScore:     kptScore,
		inputW:       inputW,
		inputH:       inputH,
		numKeypoints: int(simccX.Shape[1]),
		xBins:        int(simccX.Shape[2]),
		yBins:        int(simccY.Shape[2]),
		splitRatio:   float32(simccX.Shape[2]) / float32(inputW),
	}, nil
}

// InputSize returns the model input size (width, height).
func (s *Session) InputSize() (int, int) { return s.inputW, s.inputH }

// NumKeypoints returns K as read from the model outputs (17 for COCO).
func (s *Session) NumKeypoints() int { return s.numKeypoints }

// PredictBoxes estimates one pose per detection box on a BGR Mat. scores
// may be nil; when present it is carried into the resulting poses. Boxes
// that fall outside the image are skipped.
func (s *Session) PredictBoxes(img gocv.Mat, boxes []image.Rectangle, scores []float32) ([]Pose, error) {
	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	aspect := float64(s.inputW) / float64(s.inputH)

	now := time.Now()
	poses := make([]Pose, 0, len(boxes))
	for i, box := range boxes {
		crop := ExpandBox(box, aspect, DefaultPaddingRatio).Intersect(bounds)
		if crop.Dx() == 0 || crop.Dy() == 0 {
			continue
		}

		kps, err := s.predictCrop(img, crop)
		if err != nil {
			return nil, fmt.Errorf("pose for box %v: %w", box, err)
		}

		pose := Pose{Box: box, Keypoints: kps}
		if i < len(scores) {
			pose.Score = scores[i]
		}
		poses = append(poses, pose)
	}

	logrus.WithFields(logrus.Fields{
		"boxes":   len(boxes),
		"poses":   len(poses),
		"elapsed": time.Since(now),
	}).Debug("rtmpose predict")

	return poses, nil
}

// predictCrop runs the model on one crop and maps keypoints back into
// source-image coordinates through the crop transform.
func (s *Session) predictCrop(img gocv.Mat, crop image.Rectangle) ([]Keypoint, error) {
	region := img.Region(crop)
	defer region.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(region, &resized, image.Pt(s.inputW, s.inputH), 0, 0, gocv.InterpolationLinear)

	pixels, err := resized.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("access crop pixels: %w", err)
	}
	// BGR capture data to RGB planes
	input := utils.PackNCHW(pixels, s.inputW, s.inputH, [3]int{2, 1, 0}, inputMean, inputStd)

	simccX, simccY, err := s.runModel(input)
	if err != nil {
		return nil, err
	}

	kps := decodeSimCC(simccX, simccY, s.numKeypoints, s.xBins, s.yBins, s.splitRatio, s.kptScore)

	xScale := float32(crop.Dx()) / float32(s.inputW)
	yScale := float32(crop.Dy()) / float32(s.inputH)
	for i := range kps {
		if !kps[i].Valid() {
			continue
		}
		kps[i].X = float32(crop.Min.X) + kps[i].X*xScale
		kps[i].Y = float32(crop.Min.Y) + kps[i].Y*yScale
	}
	return kps, nil
}

func (s *Session) runModel(input []float32) ([]float32, []float32, error) {
	inputTensor, err := ort.NewInputTensor(s.session, "", input)
	if err != nil {
		return nil, nil, err
	}
	defer inputTensor.Destroy()

	xTensor, err := ort.NewEmptyOutputTensor[float32](s.session, "simcc_x")
	if err != nil {
		return nil, nil, err
	}
	defer xTensor.Destroy()

	yTensor, err := ort.NewEmptyOutputTensor[float32](s.session, "simcc_y")
	if err != nil {
		return nil, nil, err
	}
	defer yTensor.Destroy()

	err = s.session.RunDefault(
		[]ort.AnyTensor{inputTensor},
		[]ort.AnyTensor{xTensor, yTensor},
	)
	if err != nil {
		return nil, nil, err
	}
	return xTensor.GetData(), yTensor.GetData(), nil
}

// Release frees the underlying ONNX Runtime session.
func (s *Session) Release() { s.session.Release() }
