package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedesk/internal/receipt/models"
)

var pdf = models.Artifact{Name: "Jane_Doe_CTC1.pdf", ContentType: models.ContentTypePDF, Data: []byte("%PDF")}

func TestLocal(t *testing.T) {
	ctx := context.Background()

	t.Run("writes into the output dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "students_registration_receipt")
		ref, err := NewLocal(dir).Save(ctx, pdf)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "Jane_Doe_CTC1.pdf"), ref)

		data, err := os.ReadFile(ref)
		require.NoError(t, err)
		assert.Equal(t, pdf.Data, data)
	})

	t.Run("rejects names that escape the dir", func(t *testing.T) {
		for _, name := range []string{"", "..", "../x.pdf", "sub/x.pdf"} {
			_, err := NewLocal(t.TempDir()).Save(ctx, models.Artifact{Name: name})
			assert.ErrorIs(t, err, ErrInvalidName, name)
		}
	})
}

type fakeUploader struct {
	params uploader.UploadParams
	data   []byte
	result *uploader.UploadResult
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	f.params = params
	if r, ok := file.(io.Reader); ok {
		f.data, _ = io.ReadAll(r)
	}
	return f.result, f.err
}

func TestCloudinary(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads a raw resource and returns the secure url", func(t *testing.T) {
		up := &fakeUploader{result: &uploader.UploadResult{SecureURL: "https://res.cloudinary.com/demo/raw/upload/receipts/Jane_Doe_CTC1.pdf"}}
		ref, err := NewCloudinaryWithUploader(up, "receipts").Save(ctx, pdf)
		require.NoError(t, err)

		assert.Equal(t, up.result.SecureURL, ref)
		assert.Equal(t, "receipts", up.params.Folder)
		assert.Equal(t, "raw", up.params.ResourceType)
		assert.Equal(t, "Jane_Doe_CTC1.pdf", up.params.PublicID)
		assert.Equal(t, pdf.Data, up.data)
	})

	t.Run("api error in the result", func(t *testing.T) {
		up := &fakeUploader{result: &uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid Signature"}}}
		_, err := NewCloudinaryWithUploader(up, "receipts").Save(ctx, pdf)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid Signature")
	})

	t.Run("transport error", func(t *testing.T) {
		cause := errors.New("dial tcp: timeout")
		_, err := NewCloudinaryWithUploader(&fakeUploader{err: cause}, "receipts").Save(ctx, pdf)
		assert.ErrorIs(t, err, cause)
	})
}
