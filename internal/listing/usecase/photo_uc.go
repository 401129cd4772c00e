package usecase

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

const DefaultMaxPhotoBytes = 5 << 20

var allowedPhotoExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

type PhotoUsecase struct {
	storage  domain.MediaStorage
	maxBytes int64
	logger   *logger.Logger
}

func NewPhotoUsecase(storage domain.MediaStorage, maxBytes int64, log *logger.Logger) *PhotoUsecase {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPhotoBytes
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PhotoUsecase{storage: storage, maxBytes: maxBytes, logger: log}
}

// UploadPhoto stores an image and returns the URL to put in a listing's image field.
func (uc *PhotoUsecase) UploadPhoto(ctx context.Context, fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &domain.ValidationError{Field: "file", Reason: "is empty"}
	}
	if int64(len(data)) > uc.maxBytes {
		return "", &domain.ValidationError{Field: "file", Reason: "is too large"}
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedPhotoExt[ext] {
		return "", &domain.ValidationError{Field: "file", Reason: "has an unsupported extension: " + ext}
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return "", &domain.ValidationError{Field: "file", Reason: "is not an image: " + ct}
	}

	url, err := uc.storage.Upload(ctx, fileName, data)
	if err != nil {
		uc.logger.Error("PhotoUsecase.UploadPhoto: upload failed", "file_name", fileName, "error", err.Error())
		return "", err
	}
	uc.logger.Info("PhotoUsecase.UploadPhoto: photo uploaded", "file_name", fileName, "url", url)
	return url, nil
}
