package cloudinary

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/rs/zerolog/log"
)

const DefaultAPIBaseURL = "https://api.cloudinary.com"

type Config struct {
	CloudName    string
	UploadPreset string
	Folder       string
	APIBaseURL   string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client crops images and extracts video frames through delivery URL
// transformations, and uploads media with an unsigned preset.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config Config) *Client {
	if config.APIBaseURL == "" {
		config.APIBaseURL = DefaultAPIBaseURL
	}

	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

func (c *Client) Crop(ctx context.Context, req domain.CropRequest) (string, error) {
	if !strings.Contains(req.ImageURL, "cloudinary.com") {
		return "", ErrInvalidURL
	}

	width, height, err := c.imageSize(ctx, req.ImageURL)
	if err != nil {
		return "", err
	}

	return CropURL(req.ImageURL, CropArea{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height}, width, height)
}

func (c *Client) ExtractFrame(ctx context.Context, videoURL string, timestamp float64) (string, error) {
	return FrameURL(videoURL, timestamp)
}

// imageSize reads just enough of the image to learn its natural dimensions.
func (c *Client) imageSize(ctx context.Context, imageURL string) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("failed to load image: status %d", resp.StatusCode)
	}

	config, _, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	return config.Width, config.Height, nil
}

type uploadResponse struct {
	SecureURL    string `json:"secure_url"`
	ResourceType string `json:"resource_type"`
	Format       string `json:"format"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) Upload(ctx context.Context, params domain.UploadMediaParams) (domain.UploadedMedia, error) {
	if c.config.CloudName == "" {
		return domain.UploadedMedia{}, fmt.Errorf("cloudinary cloud name is not configured")
	}

	resourceType := params.ResourceType
	if resourceType == "" {
		resourceType = domain.ResourceTypeImage
	}

	body, contentType := multipartBody(params, c.config.UploadPreset, c.config.Folder)

	uploadURL := fmt.Sprintf("%s/v1_1/%s/%s/upload", c.config.APIBaseURL, c.config.CloudName, resourceType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		body.Close()
		return domain.UploadedMedia{}, fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.UploadedMedia{}, fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	defer resp.Body.Close()

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.UploadedMedia{}, fmt.Errorf("failed to decode upload response: %w", err)
	}

	if resp.StatusCode >= 400 || result.SecureURL == "" {
		message := fmt.Sprintf("upload failed with status %d", resp.StatusCode)
		if result.Error != nil && result.Error.Message != "" {
			message = result.Error.Message
		}

		return domain.UploadedMedia{}, fmt.Errorf("cloudinary upload error: %s", message)
	}

	log.Debug().Str("url", result.SecureURL).Str("resource_type", result.ResourceType).Msg("Uploaded media to Cloudinary")

	mediaType := params.ContentType
	if mediaType == "" && result.ResourceType != "" && result.Format != "" {
		mediaType = result.ResourceType + "/" + result.Format
	}

	return domain.UploadedMedia{
		URL:       result.SecureURL,
		MediaType: mediaType,
	}, nil
}

// multipartBody streams the form so large videos are not buffered in memory.
func multipartBody(params domain.UploadMediaParams, preset, folder string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			if preset != "" {
				if err := writer.WriteField("upload_preset", preset); err != nil {
					return err
				}
			}

			if folder != "" {
				if err := writer.WriteField("folder", folder); err != nil {
					return err
				}
			}

			fileName := params.FileName
			if fileName == "" {
				fileName = "upload"
			}

			part, err := writer.CreateFormFile("file", fileName)
			if err != nil {
				return err
			}

			if _, err := io.Copy(part, params.Reader); err != nil {
				return err
			}

			return writer.Close()
		}()

		pw.CloseWithError(err)
	}()

	return pr, writer.FormDataContentType()
}
