package usecase

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
)

// resolveContentType trusts the declared type unless it is missing or
// generic, in which case the bytes are sniffed.
func resolveContentType(f domain.UploadFile) string {
	declared := strings.ToLower(strings.TrimSpace(f.ContentType))
	if parsed, _, err := mime.ParseMediaType(declared); err == nil {
		declared = parsed
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if len(f.Data) == 0 {
		return declared
	}
	return mimetype.Detect(f.Data).String()
}

// ValidateBatch checks a whole batch before anything is uploaded. One bad
// file rejects the batch. The returned copy carries resolved content types.
func ValidateBatch(files []domain.UploadFile, allowEmpty bool) ([]domain.UploadFile, error) {
	if len(files) == 0 {
		if allowEmpty {
			return nil, nil
		}
		return nil, domain.Validationf("at least one file is required")
	}
	if len(files) > domain.MaxFiles {
		return nil, domain.Validationf("at most %d files per upload, got %d", domain.MaxFiles, len(files))
	}

	out := make([]domain.UploadFile, len(files))
	for i, f := range files {
		// Oversized parts arrive without their bytes, so size is checked
		// before the type, which may need sniffing.
		size := f.Size
		if n := int64(len(f.Data)); n > size {
			size = n
		}
		if size > domain.MaxFileSize {
			return nil, fmt.Errorf("%w: %q exceeds %d bytes", domain.ErrPayloadTooLarge, f.Name, domain.MaxFileSize)
		}
		ct := resolveContentType(f)
		if !domain.AllowedImageTypes[ct] {
			return nil, fmt.Errorf("%w: %q (%s)", domain.ErrUnsupportedMediaType, f.Name, ct)
		}
		f.ContentType = ct
		f.Size = size
		out[i] = f
	}
	return out, nil
}

// ClampMainIndex maps an out-of-range main index to the first file.
func ClampMainIndex(mainIndex, count int) int {
	if mainIndex < 0 || mainIndex >= count {
		return 0
	}
	return mainIndex
}
