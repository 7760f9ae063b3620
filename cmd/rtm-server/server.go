package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxUploadBytes = 10 << 20

// Detection and PoseInstance are the wire form of the inference results.
type Detection struct {
	Box   [4]int  `json:"box"` // x1, y1, x2, y2
	Score float32 `json:"score"`
	Label string  `json:"label,omitempty"`
}

type KeypointJSON struct {
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Score float32 `json:"score"`
	Valid bool    `json:"valid"`
}

type PoseInstance struct {
	Box       [4]int         `json:"box"`
	Score     float32        `json:"score"`
	Keypoints []KeypointJSON `json:"keypoints"`
}

// InferenceResponse is the /pose response body.
type InferenceResponse struct {
	Detections []Detection    `json:"detections"`
	Poses      []PoseInstance `json:"poses"`
	TimingsMS  TimingsMS      `json:"timings_ms"`
}

type TimingsMS struct {
	Decode float64 `json:"decode"`
	Infer  float64 `json:"infer"`
	Total  float64 `json:"total"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// inferFunc runs detection + pose on a decoded image. Injected so tests
// can run the HTTP surface without model files.
type inferFunc func(img image.Image) (*InferenceResponse, error)

// Server exposes pose inference over HTTP.
type Server struct {
	infer     inferFunc
	log       *logrus.Entry
	startedAt time.Time
	requests  atomic.Uint64
	failures  atomic.Uint64
}

func NewServer(infer inferFunc) *Server {
	return &Server{
		infer:     infer,
		log:       logrus.WithField("component", "rtm-server"),
		startedAt: time.Now(),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/pose", s.handlePose).Methods("POST")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	return r
}

func (s *Server) handlePose(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.requests.Add(1)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	imgBytes, err := readImageBody(r)
	if err != nil {
		s.failures.Add(1)
		sendError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	decodeStart := time.Now()
	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	decodeTime := time.Since(decodeStart)
	if err != nil {
		s.failures.Add(1)
		sendError(w, "invalid_image", "failed to decode image", http.StatusBadRequest)
		return
	}

	inferStart := time.Now()
	resp, err := s.infer(img)
	inferTime := time.Since(inferStart)
	if err != nil {
		s.failures.Add(1)
		s.log.WithError(err).Error("inference failed")
		sendError(w, "inference_error", err.Error(), http.StatusInternalServerError)
		return
	}

	resp.TimingsMS = TimingsMS{
		Decode: float64(decodeTime.Microseconds()) / 1000,
		Infer:  float64(inferTime.Microseconds()) / 1000,
		Total:  float64(time.Since(start).Microseconds()) / 1000,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
		"requests_total": s.requests.Load(),
		"failures_total": s.failures.Load(),
	})
}

// readImageBody extracts image bytes from a JSON base64 body, a multipart
// upload, or the raw request body, keyed on Content-Type. The caller caps
// the body size with http.MaxBytesReader.
func readImageBody(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("parse json body: %w", err)
		}
		b, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			return nil, fmt.Errorf("decode base64 image: %w", err)
		}
		return b, nil
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("read multipart file: %w", err)
		}
		defer file.Close()
		return io.ReadAll(file)
	default:
		return io.ReadAll(r.Body)
	}
}

func sendError(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: message})
}
