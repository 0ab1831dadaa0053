package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	uploads []string
	failErr error
}

func (f *fakeStorage) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	if f.failErr != nil {
		return "", f.failErr
	}
	f.uploads = append(f.uploads, name)
	return "https://cdn.example.com/" + name, nil
}

// A minimal valid PNG header so mimetype detection sees an image.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func multipartFile(t *testing.T, name string, payload []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("photo", name)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(32 << 20)
	require.NoError(t, err)

	files := form.File["photo"]
	require.Len(t, files, 1)
	return files[0]
}

func TestEvidenceUploadStoresImage(t *testing.T) {
	storage := &fakeStorage{}
	svc := NewEvidenceService(storage, 5, zerolog.Nop())

	payload := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
	resp, err := svc.Upload(context.Background(), multipartFile(t, "Gate Photo.PNG", payload))
	require.NoError(t, err)

	require.Equal(t, "gate-photo.png", resp.FileName)
	require.Equal(t, "https://cdn.example.com/gate-photo.png", resp.URL)
	require.Equal(t, "image/png", resp.MimeType)
	require.Equal(t, int64(len(payload)), resp.SizeBytes)
	require.NotEmpty(t, resp.Checksum)
	require.Equal(t, []string{"gate-photo.png"}, storage.uploads)
}

func TestEvidenceUploadRejectsNonImage(t *testing.T) {
	storage := &fakeStorage{}
	svc := NewEvidenceService(storage, 5, zerolog.Nop())

	_, err := svc.Upload(context.Background(), multipartFile(t, "notes.txt", []byte("just some text")))
	require.ErrorIs(t, err, ErrEvidenceTypeNotAllowed)
	require.Empty(t, storage.uploads)
}

func TestEvidenceUploadRejectsOversizedFile(t *testing.T) {
	storage := &fakeStorage{}
	svc := NewEvidenceService(storage, 1, zerolog.Nop())

	payload := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 2<<20)...)
	_, err := svc.Upload(context.Background(), multipartFile(t, "huge.png", payload))
	require.ErrorIs(t, err, ErrEvidenceTooLarge)
	require.Empty(t, storage.uploads)
}

func TestEvidenceUploadRequiresFile(t *testing.T) {
	svc := NewEvidenceService(&fakeStorage{}, 5, zerolog.Nop())

	_, err := svc.Upload(context.Background(), nil)
	require.Error(t, err)
}
