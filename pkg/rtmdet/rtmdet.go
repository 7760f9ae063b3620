// Package rtmdet runs RTMDet object detection over an mmdeploy-exported
// ONNX model. The exported graph ends in the deploy post-processing head,
// so the model emits ready-made boxes: "dets" [1, N, 5] as (x1, y1, x2,
// y2, score) in model input coordinates, and "labels" [1, N] class ids.
package rtmdet

import (
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"
	ort "github.com/yam8511/go-onnxruntime"
	"gocv.io/x/gocv"

	"rtm-pose-go/pkg/utils"
)

// Thresholds applied when the caller passes zero values.
const (
	DefaultScoreThreshold = 0.65
	DefaultIoUThreshold   = 0.5
)

// RTMDet is trained on BGR input with this per-channel normalization.
var (
	inputMean = [3]float32{103.53, 116.28, 123.675}
	inputStd  = [3]float32{57.375, 57.12, 58.395}
)

// Detection is one detected object in source-image coordinates.
type Detection struct {
	Box     image.Rectangle
	Score   float32
	ClassID int
	Label   string
}

// Session wraps an ONNX Runtime session for one RTMDet model.
type Session struct {
	session *ort.Session
	names   []string
	score   float32
	iou     float32
	inputW  int
	inputH  int
}

// New loads the detector. namesFile may be empty, in which case detections
// carry no label text. Zero thresholds fall back to the defaults.
func New(sdk *ort.ORT_SDK, onnxFile, namesFile string, score, iou float32, useGPU bool) (*Session, error) {
	sess, err := ort.NewSessionWithONNX(sdk, onnxFile, useGPU)
	if err != nil {
		return nil, fmt.Errorf("load detector %s: %w", onnxFile, err)
	}

	var names []string
	if namesFile != "" {
		names, err = utils.ReadNames(namesFile)
		if err != nil {
			sess.Release()
			return nil, fmt.Errorf("read names %s: %w", namesFile, err)
		}
	}

	if score == 0 {
		score = DefaultScoreThreshold
	}
	if iou == 0 {
		iou = DefaultIoUThreshold
	}

	input0, ok := sess.Input("input")
	if !ok {
		sess.Release()
		return nil, fmt.Errorf("detector %s: model has no input named %q", onnxFile, "input")
	}

	return &Session{
		session: sess,
		names:   names,
		score:   score,
		iou:     iou,
		inputW:  int(input0.Shape[3]),
		inputH:  int(input0.Shape[2]),
	}, nil
}

// InputSize returns the model input size (width, height).
func (s *Session) InputSize() (int, int) { return s.inputW, s.inputH }

// PredictFile runs detection on an image file and returns the decoded
// image alongside the detections so callers can render onto it.
func (s *Session) PredictFile(inputFile string) (gocv.Mat, []Detection, error) {
	img := gocv.IMRead(inputFile, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, nil, fmt.Errorf("read image %s: empty or unreadable", inputFile)
	}
	dets, err := s.Predict(img)
	if err != nil {
		img.Close()
		return gocv.Mat{}, nil, err
	}
	return img, dets, nil
}

// Predict runs detection on a BGR Mat and returns detections in
// source-image coordinates. An empty result is not an error.
func (s *Session) Predict(img gocv.Mat) ([]Detection, error) {
	now := time.Now()
	input, xFactor, yFactor, err := s.prepareInput(img)
	if err != nil {
		return nil, err
	}
	pre := time.Since(now)

	now = time.Now()
	dets, labels, err := s.runModel(input)
	if err != nil {
		return nil, err
	}
	infer := time.Since(now)

	now = time.Now()
	objs := s.processOutput(dets, labels, xFactor, yFactor, img.Cols(), img.Rows())
	post := time.Since(now)

	logrus.WithFields(logrus.Fields{
		"pre":     pre,
		"infer":   infer,
		"post":    post,
		"objects": len(objs),
	}).Debug("rtmdet predict")

	return objs, nil
}

// prepareInput resizes to the model input and fills a normalized NCHW
// buffer. RTMDet keeps BGR channel order.
func (s *Session) prepareInput(img gocv.Mat) ([]float32, float32, float32, error) {
	imgW, imgH := img.Cols(), img.Rows()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(s.inputW, s.inputH), 0, 0, gocv.InterpolationLinear)

	pixels, err := resized.DataPtrUint8()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("access resized pixels: %w", err)
	}

	input := utils.PackNCHW(pixels, s.inputW, s.inputH, [3]int{0, 1, 2}, inputMean, inputStd)
	return input,
		float32(imgW) / float32(s.inputW),
		float32(imgH) / float32(s.inputH),
		nil
}

func (s *Session) runModel(input []float32) ([]float32, []int64, error) {
	inputTensor, err := ort.NewInputTensor(s.session, "", input)
	if err != nil {
		return nil, nil, err
	}
	defer inputTensor.Destroy()

	detsTensor, err := ort.NewEmptyOutputTensor[float32](s.session, "dets")
	if err != nil {
		return nil, nil, err
	}
	defer detsTensor.Destroy()

	labelsTensor, err := ort.NewEmptyOutputTensor[int64](s.session, "labels")
	if err != nil {
		return nil, nil, err
	}
	defer labelsTensor.Destroy()

	err = s.session.RunDefault(
		[]ort.AnyTensor{inputTensor},
		[]ort.AnyTensor{detsTensor, labelsTensor},
	)
	if err != nil {
		return nil, nil, err
	}
	return detsTensor.GetData(), labelsTensor.GetData(), nil
}

// processOutput decodes raw outputs, filters by score, and applies
// class-agnostic NMS at the session IoU threshold. The deploy config bakes
// its own NMS into the graph; re-running it here honors the IoU threshold
// chosen at construction.
func (s *Session) processOutput(dets []float32, labels []int64, xFactor, yFactor float32, imgW, imgH int) []Detection {
	boxes, scores, classes := decodeDets(dets, labels, s.score, xFactor, yFactor, imgW, imgH)
	if len(boxes) == 0 {
		return nil
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
	return objs
}

func (s *Session) label(classID int) string {
	if classID >= 0 && classID < len(s.names) {
		return s.names[classID]
	}
	return ""
}

// Release frees the underlying ONNX Runtime session.
func (s *Session) Release() { s.session.Release() }
