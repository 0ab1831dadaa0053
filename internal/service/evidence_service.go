package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/latemark-go-api/internal/dto"
	"github.com/noah-isme/latemark-go-api/internal/observability"
)

var (
	// ErrEvidenceTooLarge indicates the photo exceeded the configured limit.
	ErrEvidenceTooLarge = errors.New("evidence photo exceeds maximum allowed size")
	// ErrEvidenceTypeNotAllowed indicates the payload is not an image.
	ErrEvidenceTypeNotAllowed = errors.New("evidence must be an image")
)

// FileStorage abstracts evidence photo destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// EvidenceService validates and stores the photos faculty attach to late marks.
type EvidenceService interface {
	Upload(ctx context.Context, file *multipart.FileHeader) (dto.EvidenceUploadResponse, error)
}

type evidenceService struct {
	storage FileStorage
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewEvidenceService constructs the evidence service.
func NewEvidenceService(storage FileStorage, maxSizeMB int, logger zerolog.Logger) EvidenceService {
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}

	observability.RegisterMetrics()

	return &evidenceService{
		storage: storage,
		logger:  logger.With().Str("component", "evidence_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/latemark-go-api/internal/service/evidence"),
	}
}

func (s *evidenceService) Upload(ctx context.Context, file *multipart.FileHeader) (dto.EvidenceUploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evidence.upload")
	defer span.End()

	if file == nil {
		err := errors.New("photo is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.EvidenceUploadResponse{}, err
	}

	span.SetAttributes(
		attribute.String("evidence.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("evidence.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		observability.EvidenceRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrEvidenceTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.EvidenceUploadResponse{}, ErrEvidenceTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.EvidenceUploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.EvidenceUploadResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.EvidenceRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrEvidenceTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.EvidenceUploadResponse{}, ErrEvidenceTooLarge
	}

	mime := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("evidence.detected_mime", mime.String()))
	if !strings.HasPrefix(mime.String(), "image/") {
		observability.EvidenceRejected().WithLabelValues("type").Inc()
		span.RecordError(ErrEvidenceTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return dto.EvidenceUploadResponse{}, ErrEvidenceTypeNotAllowed
	}

	checksum := sha256.Sum256(buf.Bytes())
	sanitizedName := sanitizePhotoName(file.Filename)

	url, err := s.storage.Upload(ctx, sanitizedName, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.EvidenceRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.EvidenceUploadResponse{}, fmt.Errorf("store evidence photo: %w", err)
	}

	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().
		Str("file_name", sanitizedName).
		Int("size_bytes", buf.Len()).
		Msg("evidence photo stored")

	return dto.EvidenceUploadResponse{
		URL:       url,
		FileName:  sanitizedName,
		MimeType:  mime.String(),
		SizeBytes: int64(buf.Len()),
		Checksum:  hex.EncodeToString(checksum[:]),
	}, nil
}

func sanitizePhotoName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("evidence-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".jpg"
	}
	return base + ext
}
