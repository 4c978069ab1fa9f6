// Package face identifies people in photos by comparing face encodings
// against a library of reference portraits. Detection and encoding run on
// an external face service; encodings are cached on disk and matched with
// an in-memory HNSW index.
package face

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const defaultFaceServiceURL = "http://localhost:8100"

// Box is a face bounding box in pixels, face-recognition CSS order.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Service detects and encodes faces in an image.
type Service interface {
	// Locations returns the bounding boxes of faces in the image.
	Locations(ctx context.Context, imageData []byte) ([]Box, error)

	// Encodings computes one encoding vector per face. When boxes is nil
	// the service detects faces itself before encoding.
	Encodings(ctx context.Context, imageData []byte, boxes []Box) ([][]float32, error)
}

// ServiceClient talks to the face service over HTTP.
type ServiceClient struct {
	baseURL string
	client  *http.Client
}

// NewServiceClient creates a client. An empty baseURL targets localhost.
func NewServiceClient(baseURL string) *ServiceClient {
	if baseURL == "" {
		baseURL = defaultFaceServiceURL
	}
	return &ServiceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

type locationsResponse struct {
	Faces []Box `json:"faces"`
}

type encodingsResponse struct {
	Dim       int         `json:"dim"`
	Encodings [][]float32 `json:"encodings"`
}

// Locations detects faces in the image and returns their bounding boxes.
func (c *ServiceClient) Locations(ctx context.Context, imageData []byte) ([]Box, error) {
	body, err := c.postMultipartImage(ctx, "/face/locations", imageData, nil)
	if err != nil {
		return nil, err
	}

	var resp locationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse locations response: %w", err)
	}
	return resp.Faces, nil
}

// Encodings computes a 128-dimensional encoding per face. With explicit
// boxes the service skips its own detection pass.
func (c *ServiceClient) Encodings(ctx context.Context, imageData []byte, boxes []Box) ([][]float32, error) {
	var extra map[string]string
	if boxes != nil {
		boxJSON, err := json.Marshal(boxes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal boxes: %w", err)
		}
		extra = map[string]string{"boxes": string(boxJSON)}
	}

	body, err := c.postMultipartImage(ctx, "/face/encodings", imageData, extra)
	if err != nil {
		return nil, err
	}

	var resp encodingsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse encodings response: %w", err)
	}
	if boxes != nil && len(resp.Encodings) != len(boxes) {
		return nil, errors.New("encoding count does not match box count")
	}
	return resp.Encodings, nil
}

// postMultipartImage constructs a multipart form with the image data plus
// optional extra fields and posts it to the given endpoint.
func (c *ServiceClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("face service error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
