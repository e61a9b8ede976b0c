package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

// formError classifies a multipart parse failure.
func formError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return err
	}
	return domain.Validationf("invalid multipart body: %v", err)
}

// readFiles loads the uploaded parts. Oversized parts and batches above the
// file limit are not read; the batch validation rejects them by size and count.
func readFiles(headers []*multipart.FileHeader) ([]domain.UploadFile, error) {
	files := make([]domain.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f := domain.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
		}
		if fh.Size <= domain.MaxFileSize && len(headers) <= domain.MaxFiles {
			data, err := readPart(fh)
			if err != nil {
				return nil, fmt.Errorf("%w: read %q: %v", domain.ErrValidation, fh.Filename, err)
			}
			f.Data = data
		}
		files = append(files, f)
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(io.LimitReader(src, domain.MaxFileSize+1))
}
