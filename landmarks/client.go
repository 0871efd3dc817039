// Package landmarks provides the concrete backend for the facial landmark
// collaborator: a client for a remote landmark inference service. The gaze
// core only depends on iface.Detector, never on this package.
package landmarks

import (
	"encoding/base64"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"gocv.io/x/gocv"

	iface "GazeTrackGo/interface"
)

const (
	detectPath     = "/api/landmarks"
	defaultTimeout = 5 * time.Second
)

// Wire types of the landmark inference service.
type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Data       []faceData `json:"data"`
	StatusCode int        `json:"status_code"`
}

type faceData struct {
	Bbox      boxData     `json:"bbox"`
	Landmarks []pointData `json:"landmarks"`
	Score     float64     `json:"score"`
}

type boxData struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type pointData struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Client calls a remote facial landmark inference service. It satisfies
// iface.Detector, so a gaze session can use it directly.
type Client struct {
	http *resty.Client
	url  string
}

// NewClient builds a client from the service settings. A zero timeout falls
// back to defaultTimeout.
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.TimeoutSeconds <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http: resty.New().SetTimeout(timeout),
		url:  strings.TrimRight(cfg.BaseURL, "/") + detectPath,
	}
}

// DetectLandmarks posts the frame to the service and maps every returned
// face onto the 68-point scheme. Faces with a short landmark set are dropped
// rather than padded.
func (c *Client) DetectLandmarks(frame gocv.Mat) ([]iface.FaceLandmarks, error) {
	b64, err := MatToBase64(frame)
	if err != nil {
		return nil, err
	}

	var respBody detectResponse
	resp, err := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(detectRequest{Image: b64}).
		SetResult(&respBody).
		Post(c.url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("landmark service returned %s: %s", resp.Status(), resp.String())
	}

	faces := make([]iface.FaceLandmarks, 0, len(respBody.Data))
	for _, f := range respBody.Data {
		if len(f.Landmarks) < iface.NumLandmarks {
			continue
		}
		var lm iface.FaceLandmarks
		lm.Score = f.Score
		for i := 0; i < iface.NumLandmarks; i++ {
			lm.Points[i] = image.Pt(f.Landmarks[i].X, f.Landmarks[i].Y)
		}
		faces = append(faces, lm)
	}
	return faces, nil
}

// MatToBase64 encodes a frame as a base64 JPEG string, the format the
// service accepts.
func MatToBase64(frame gocv.Mat) (string, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return "", err
	}
	defer buf.Close()
	return base64.StdEncoding.EncodeToString(buf.GetBytes()), nil
}
