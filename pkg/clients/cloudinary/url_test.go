package cloudinary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCropURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		area    CropArea
		width   int
		height  int
		want    string
		wantErr error
	}{
		{
			name:   "plain upload url",
			url:    "https://res.cloudinary.com/demo/image/upload/v1712/cat.png",
			area:   CropArea{X: 10, Y: 20, Width: 50, Height: 50},
			width:  1000,
			height: 500,
			want:   "https://res.cloudinary.com/demo/image/upload/c_crop,x_100,y_100,w_500,h_250/v1712/cat.png",
		},
		{
			name:   "replaces existing transformation",
			url:    "https://res.cloudinary.com/demo/image/upload/c_crop,x_1,y_1,w_2,h_2/cat.png",
			area:   CropArea{X: 0, Y: 0, Width: 100, Height: 100},
			width:  640,
			height: 480,
			want:   "https://res.cloudinary.com/demo/image/upload/c_crop,x_0,y_0,w_640,h_480/cat.png",
		},
		{
			name:   "keeps folders",
			url:    "https://res.cloudinary.com/demo/image/upload/my_folder/cat.png",
			area:   CropArea{X: 0, Y: 0, Width: 50, Height: 50},
			width:  3,
			height: 3,
			want:   "https://res.cloudinary.com/demo/image/upload/c_crop,x_0,y_0,w_2,h_2/my_folder/cat.png",
		},
		{
			name:    "not cloudinary",
			url:     "https://example.com/image/upload/cat.png",
			wantErr: ErrInvalidURL,
		},
		{
			name:    "missing upload segment",
			url:     "https://res.cloudinary.com/demo/image/fetch/cat.png",
			wantErr: ErrInvalidURLFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CropURL(tt.url, tt.area, tt.width, tt.height)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrameURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		timestamp float64
		want      string
		wantErr   error
	}{
		{
			name:      "whole seconds",
			url:       "https://res.cloudinary.com/demo/video/upload/v1/clip.mp4",
			timestamp: 3,
			want:      "https://res.cloudinary.com/demo/video/upload/so_3,f_jpg,fl_attachment:false/v1/clip.jpg",
		},
		{
			name:      "fractional seconds",
			url:       "https://res.cloudinary.com/demo/video/upload/clip.mov",
			timestamp: 1.5,
			want:      "https://res.cloudinary.com/demo/video/upload/so_1.5,f_jpg,fl_attachment:false/clip.jpg",
		},
		{
			name:      "no extension",
			url:       "https://res.cloudinary.com/demo/video/upload/clip",
			timestamp: 0,
			want:      "https://res.cloudinary.com/demo/video/upload/so_0,f_jpg,fl_attachment:false/clip.jpg",
		},
		{
			name:    "missing upload segment",
			url:     "https://example.com/clip.mp4",
			wantErr: ErrInvalidVideoURL,
		},
		{
			name:    "nothing after upload",
			url:     "https://res.cloudinary.com/demo/video/upload/",
			wantErr: ErrInvalidURLFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FrameURL(tt.url, tt.timestamp)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
