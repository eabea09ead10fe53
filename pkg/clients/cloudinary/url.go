package cloudinary

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const uploadSegment = "/upload/"

var (
	ErrInvalidURL       = errors.New("invalid Cloudinary URL")
	ErrInvalidURLFormat = errors.New("invalid Cloudinary URL format")
	ErrInvalidVideoURL  = errors.New("invalid Cloudinary video URL")
)

// transformationSegment matches a path segment made of Cloudinary
// transformation parameters such as "c_crop,x_0,y_0,w_10,h_10".
var transformationSegment = regexp.MustCompile(`^` + transformationParam + `(,` + transformationParam + `)*$`)

const transformationParam = `(a|ac|ar|b|bo|br|c|co|cs|d|dn|dpr|du|e|eo|f|fl|fps|g|h|l|o|pg|q|r|so|sp|t|u|vc|w|x|y|z)_[^,/]+`

// CropArea is a crop rectangle in percentages of the image size.
type CropArea struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// CropURL derives a cropped delivery URL from imageURL. The percentages are
// scaled to pixels using the natural image size and rounded.
func CropURL(imageURL string, area CropArea, imageWidth, imageHeight int) (string, error) {
	if !strings.Contains(imageURL, "cloudinary.com") {
		return "", ErrInvalidURL
	}

	parts := strings.Split(imageURL, uploadSegment)
	if len(parts) != 2 {
		return "", ErrInvalidURLFormat
	}

	x := scale(area.X, imageWidth)
	y := scale(area.Y, imageHeight)
	w := scale(area.Width, imageWidth)
	h := scale(area.Height, imageHeight)

	transform := fmt.Sprintf("c_crop,x_%d,y_%d,w_%d,h_%d", x, y, w, h)

	return parts[0] + uploadSegment + transform + "/" + stripTransformation(parts[1]), nil
}

// FrameURL derives the URL of a still JPEG taken from videoURL at timestamp
// seconds.
func FrameURL(videoURL string, timestamp float64) (string, error) {
	base, rest, found := strings.Cut(videoURL, uploadSegment)
	if !found {
		return "", ErrInvalidVideoURL
	}

	if rest == "" {
		return "", ErrInvalidURLFormat
	}

	if i := strings.LastIndex(rest, "."); i != -1 {
		rest = rest[:i]
	}

	transform := "so_" + strconv.FormatFloat(timestamp, 'f', -1, 64) + ",f_jpg,fl_attachment:false"

	return base + uploadSegment + transform + "/" + rest + ".jpg", nil
}

func scale(percent float64, size int) int {
	return int(math.Round(percent / 100 * float64(size)))
}

// stripTransformation drops a leading transformation segment, keeping
// versions and folders.
func stripTransformation(path string) string {
	first, rest, found := strings.Cut(path, "/")
	if found && transformationSegment.MatchString(first) {
		return rest
	}

	return path
}
