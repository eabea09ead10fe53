package s3

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/flowbaker/weave/pkg/domain"
	"github.com/gosimple/slug"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	KeyPrefix       string
	// PublicBaseURL replaces the S3 location in returned URLs, e.g. a CDN host.
	PublicBaseURL  string
	ForcePathStyle bool
}

// Uploader stores uploaded media in an S3 bucket. It implements
// domain.MediaUploader.
type Uploader struct {
	uploader *s3manager.Uploader
	config   Config
}

func NewUploader(config Config) (*Uploader, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}

	if config.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKeyID, config.SecretAccessKey, "")
	}

	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(config.ForcePathStyle)
		awsConfig.DisableSSL = aws.Bool(strings.HasPrefix(config.Endpoint, "http://"))
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return &Uploader{
		uploader: s3manager.NewUploaderWithClient(s3.New(sess)),
		config:   config,
	}, nil
}

func (u *Uploader) Upload(ctx context.Context, params domain.UploadMediaParams) (domain.UploadedMedia, error) {
	resourceType := params.ResourceType
	if resourceType == "" {
		resourceType = domain.ResourceTypeImage
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := u.objectKey(resourceType, params.FileName)

	result, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.config.Bucket),
		Key:         aws.String(key),
		Body:        params.Reader,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upload object to S3")
		return domain.UploadedMedia{}, fmt.Errorf("failed to upload to s3: %w", err)
	}

	location := result.Location
	if u.config.PublicBaseURL != "" {
		location = strings.TrimSuffix(u.config.PublicBaseURL, "/") + "/" + key
	}

	return domain.UploadedMedia{
		URL:       location,
		MediaType: params.ContentType,
	}, nil
}

// objectKey builds "<prefix>/<resource type>/<xid>-<slug>.<ext>".
func (u *Uploader) objectKey(resourceType domain.ResourceType, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	name := slug.Make(strings.TrimSuffix(fileName, path.Ext(fileName)))

	key := xid.New().String()
	if name != "" {
		key += "-" + name
	}

	key = path.Join(string(resourceType), key+ext)

	if u.config.KeyPrefix != "" {
		key = path.Join(u.config.KeyPrefix, key)
	}

	return key
}
