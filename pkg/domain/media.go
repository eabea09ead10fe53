package domain

import (
	"context"
	"io"
)

type ResourceType string

const (
	ResourceTypeImage ResourceType = "image"
	ResourceTypeVideo ResourceType = "video"
)

type CropRequest struct {
	ImageURL string
	X        float64
	Y        float64
	Width    float64
	Height   float64
}

type ImageCropper interface {
	Crop(ctx context.Context, req CropRequest) (string, error)
}

type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoURL string, timestamp float64) (string, error)
}

type UploadMediaParams struct {
	FileName     string
	ContentType  string
	ResourceType ResourceType
	Reader       io.Reader
}

type UploadedMedia struct {
	URL       string `json:"url"`
	MediaType string `json:"media_type,omitempty"`
}

type MediaUploader interface {
	Upload(ctx context.Context, params UploadMediaParams) (UploadedMedia, error)
}
