package artifact

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"feedesk/internal/receipt/models"
)

// Uploader is the part of the Cloudinary upload API this store uses.
type Uploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// Cloudinary uploads artifacts as raw resources; the reference is the secure URL.
type Cloudinary struct {
	upload Uploader
	folder string
}

func NewCloudinary(cloudName, apiKey, apiSecret, folder string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	return NewCloudinaryWithUploader(&cld.Upload, folder), nil
}

func NewCloudinaryWithUploader(up Uploader, folder string) *Cloudinary {
	return &Cloudinary{upload: up, folder: folder}
}

func (c *Cloudinary) Save(ctx context.Context, a models.Artifact) (string, error) {
	resp, err := c.upload.Upload(ctx, bytes.NewReader(a.Data), uploader.UploadParams{
		Folder:       c.folder,
		PublicID:     a.Name,
		ResourceType: "raw",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", a.Name, err)
	}
	if resp == nil {
		return "", fmt.Errorf("upload %s: empty response", a.Name)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload %s: %s", a.Name, resp.Error.Message)
	}
	return resp.SecureURL, nil
}
