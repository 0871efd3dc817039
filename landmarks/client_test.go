package landmarks

import (
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	iface "GazeTrackGo/interface"
)

func testFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0), 24, 24, gocv.MatTypeCV8UC1)
}

func landmarkService(t *testing.T, faces []faceData) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, detectPath, r.URL.Path)

		var req detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		raw, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		assert.NotEmpty(t, raw)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(detectResponse{Data: faces, StatusCode: http.StatusOK})
	}))
}

func TestClientDetectLandmarks(t *testing.T) {
	frame := testFrame()
	defer frame.Close()

	t.Run("maps faces onto the landmark scheme", func(t *testing.T) {
		face := faceData{Score: 0.93, Bbox: boxData{X: 2, Y: 2, Width: 20, Height: 20}}
		for i := 0; i < iface.NumLandmarks; i++ {
			face.Landmarks = append(face.Landmarks, pointData{X: i, Y: i * 2})
		}
		srv := landmarkService(t, []faceData{face})
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL + "/"})
		faces, err := c.DetectLandmarks(frame)
		require.NoError(t, err)
		require.Len(t, faces, 1)
		assert.Equal(t, 0.93, faces[0].Score)
		assert.Equal(t, image.Pt(41, 82), faces[0].Points[41])
	})

	t.Run("drops faces with short landmark sets", func(t *testing.T) {
		srv := landmarkService(t, []faceData{{Landmarks: []pointData{{X: 1, Y: 1}}}})
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL})
		faces, err := c.DetectLandmarks(frame)
		require.NoError(t, err)
		assert.Empty(t, faces)
	})

	t.Run("no faces", func(t *testing.T) {
		srv := landmarkService(t, nil)
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL})
		faces, err := c.DetectLandmarks(frame)
		require.NoError(t, err)
		assert.Empty(t, faces)
	})

	t.Run("service errors surface", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL})
		_, err := c.DetectLandmarks(frame)
		assert.Error(t, err)
	})
}

func TestMatToBase64(t *testing.T) {
	frame := testFrame()
	defer frame.Close()

	b64, err := MatToBase64(frame)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	decoded, err := gocv.IMDecode(raw, gocv.IMReadGrayScale)
	require.NoError(t, err)
	defer decoded.Close()
	assert.Equal(t, 24, decoded.Rows())
	assert.Equal(t, 24, decoded.Cols())
}

func TestLoadConfig(t *testing.T) {
	t.Run("reads yaml settings", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("baseURL: http://10.0.0.2:9000\ntimeoutSeconds: 3\n"), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "http://10.0.0.2:9000", cfg.BaseURL)
		assert.Equal(t, 3, cfg.TimeoutSeconds)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("baseURL: [broken"), 0o644))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}
