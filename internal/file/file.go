package file

import (
	"context"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// FileUploader pushes merchant logos and perk images to Cloudinary and hands
// back the hosted URL we store on the record.
type FileUploader struct {
	cloud_name string
	api_key    string
	api_secret string
}

func New(cloud_name, api_key, api_secret string) *FileUploader {
	return &FileUploader{
		cloud_name: cloud_name,
		api_key:    api_key,
		api_secret: api_secret,
	}
}

func (f *FileUploader) UploadFile(ctx context.Context, file io.Reader, publicID string) (string, error) {
	cld, err := cloudinary.NewFromParams(f.cloud_name, f.api_key, f.api_secret)
	if err != nil {
		return "", err
	}

	uploadResult, err := cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:   "nerava/merchants",
		PublicID: publicID,
	})
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
