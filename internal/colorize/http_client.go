package colorize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"tinct/internal/services"
)

// HTTPColorizer talks to a colorizer backend over HTTP. The backend
// accepts a multipart form with the line image, optional references,
// and generation parameters, and responds with an encoded PNG.
type HTTPColorizer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPColorizer returns a client for the backend at endpoint. The
// timeout bounds each request end to end.
func NewHTTPColorizer(endpoint string, timeout time.Duration) *HTTPColorizer {
	return &HTTPColorizer{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

// Colorize submits one job and decodes the backend's response image.
func (h *HTTPColorizer) Colorize(ctx context.Context, req Request) (image.Image, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writeImagePart(writer, "line", "line.png", req.Line); err != nil {
		return nil, services.Wrap(services.ErrExternal, "colorizer", "encode request", "line image", err)
	}
	for i, ref := range req.References {
		name := fmt.Sprintf("reference_%d.png", i)
		if err := writeImagePart(writer, "references", name, ref); err != nil {
			return nil, services.Wrap(services.ErrExternal, "colorizer", "encode request", name, err)
		}
	}
	fields := map[string]string{
		"style":               req.Style,
		"seed":                strconv.Itoa(req.Seed),
		"num_inference_steps": strconv.Itoa(req.InferenceSteps),
		"top_k":               strconv.Itoa(req.TopK),
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, services.Wrap(services.ErrExternal, "colorizer", "encode request", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, services.Wrap(services.ErrExternal, "colorizer", "encode request", "finalize form", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/colorize", &body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "colorizer", "build request", h.endpoint, err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "colorizer", "request", h.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		marker := services.ErrExternal
		// The backend signals memory pressure with 507 and throttling
		// with 429; both call for a reclaim before retrying.
		if resp.StatusCode == http.StatusInsufficientStorage || resp.StatusCode == http.StatusTooManyRequests {
			marker = services.ErrResource
		}
		return nil, services.Wrap(marker, "colorizer", "request",
			fmt.Sprintf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}

	result, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "colorizer", "decode response", h.endpoint, err)
	}
	return result, nil
}

// ClearCache asks the backend to drop its model cache.
func (h *HTTPColorizer) ClearCache() error {
	req, err := http.NewRequest(http.MethodPost, h.endpoint+"/cache/clear", nil)
	if err != nil {
		return services.Wrap(services.ErrExternal, "colorizer", "cache clear", h.endpoint, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternal, "colorizer", "cache clear", h.endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrExternal, "colorizer", "cache clear",
			fmt.Sprintf("backend returned %d", resp.StatusCode), nil)
	}
	return nil
}

func writeImagePart(writer *multipart.Writer, field, filename string, img image.Image) error {
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	return imaging.Encode(part, img, imaging.PNG)
}
