package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
)

func testImageBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 64, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func fixedInfer(img image.Image) (*InferenceResponse, error) {
	b := img.Bounds()
	return &InferenceResponse{
		Detections: []Detection{{Box: [4]int{0, 0, b.Dx(), b.Dy()}, Score: 0.9, Label: "person"}},
		Poses: []PoseInstance{{
			Box:   [4]int{0, 0, b.Dx(), b.Dy()},
			Score: 0.9,
			Keypoints: []KeypointJSON{
				{X: 1, Y: 2, Score: 0.8, Valid: true},
				{X: -1, Y: -1, Score: 0.1, Valid: false},
			},
		}},
	}, nil
}

func TestPoseRawBody(t *testing.T) {
	ts := httptest.NewServer(NewServer(fixedInfer).Router())
	defer ts.Close()

	var got InferenceResponse
	resp, err := resty.New().R().
		SetHeader("Content-Type", "image/png").
		SetBody(testImageBytes(t)).
		SetResult(&got).
		Post(ts.URL + "/pose")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", resp.StatusCode(), resp.String())
	}
	if len(got.Detections) != 1 || got.Detections[0].Label != "person" {
		t.Errorf("unexpected detections: %+v", got.Detections)
	}
	if len(got.Poses) != 1 || len(got.Poses[0].Keypoints) != 2 {
		t.Errorf("unexpected poses: %+v", got.Poses)
	}
	if !got.Poses[0].Keypoints[0].Valid || got.Poses[0].Keypoints[1].Valid {
		t.Errorf("unexpected keypoint validity: %+v", got.Poses[0].Keypoints)
	}
}

func TestPoseJSONBase64(t *testing.T) {
	ts := httptest.NewServer(NewServer(fixedInfer).Router())
	defer ts.Close()

	body := map[string]string{"image": base64.StdEncoding.EncodeToString(testImageBytes(t))}
	var got InferenceResponse
	resp, err := resty.New().R().
		SetBody(body).
		SetResult(&got).
		Post(ts.URL + "/pose")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", resp.StatusCode(), resp.String())
	}
	if len(got.Detections) != 1 {
		t.Errorf("unexpected detections: %+v", got.Detections)
	}
}

func TestPoseMultipart(t *testing.T) {
	ts := httptest.NewServer(NewServer(fixedInfer).Router())
	defer ts.Close()

	var got InferenceResponse
	resp, err := resty.New().R().
		SetFileReader("file", "test.png", bytes.NewReader(testImageBytes(t))).
		SetResult(&got).
		Post(ts.URL + "/pose")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", resp.StatusCode(), resp.String())
	}
	if len(got.Poses) != 1 {
		t.Errorf("unexpected poses: %+v", got.Poses)
	}
}

func TestPoseMultipartTooLarge(t *testing.T) {
	ts := httptest.NewServer(NewServer(fixedInfer).Router())
	defer ts.Close()

	oversized := bytes.Repeat([]byte{0xab}, maxUploadBytes+1)
	var got ErrorResponse
	resp, err := resty.New().R().
		SetFileReader("file", "huge.bin", bytes.NewReader(oversized)).
		SetError(&got).
		Post(ts.URL + "/pose")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode() != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode())
	}
	if got.Code != "invalid_request" {
		t.Errorf("error code = %q, want invalid_request", got.Code)
	}
}

func TestPoseInvalidImage(t *testing.T) {
	ts := httptest.NewServer(NewServer(fixedInfer).Router())
	defer ts.Close()

	var got ErrorResponse
	resp, err := resty.New().R().
		SetHeader("Content-Type", "image/png").
		SetBody([]byte("not an image")).
		SetError(&got).
		Post(ts.URL + "/pose")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode() != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode())
	}
	if got.Code != "invalid_image" {
		t.Errorf("error code = %q, want invalid_image", got.Code)
	}
}

func TestPoseInferenceError(t *testing.T) {
	failing := func(image.Image) (*InferenceResponse, error) {
		return nil, errors.New("session exploded")
	}
	ts := httptest.NewServer(NewServer(failing).Router())
	defer ts.Close()

	var got ErrorResponse
	resp, err := resty.New().R().
		SetHeader("Content-Type", "image/png").
		SetBody(testImageBytes(t)).
		SetError(&got).
		Post(ts.URL + "/pose")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode() != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode())
	}
	if got.Code != "inference_error" {
		t.Errorf("error code = %q, want inference_error", got.Code)
	}
}

func TestHealthAndStats(t *testing.T) {
	ts := httptest.NewServer(NewServer(fixedInfer).Router())
	defer ts.Close()

	client := resty.New()
	resp, err := client.R().Get(ts.URL + "/healthz")
	if err != nil || resp.StatusCode() != http.StatusOK {
		t.Fatalf("healthz: err=%v status=%d", err, resp.StatusCode())
	}

	var stats map[string]interface{}
	resp, err = client.R().SetResult(&stats).Get(ts.URL + "/stats")
	if err != nil || resp.StatusCode() != http.StatusOK {
		t.Fatalf("stats: err=%v status=%d", err, resp.StatusCode())
	}
	if _, ok := stats["requests_total"]; !ok {
		t.Errorf("stats missing requests_total: %v", stats)
	}
}
