package services

import (
	"context"
	"fmt"
	"time"

	"spark-backend/internal/catalog"
	appconfig "spark-backend/internal/config"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const presignExpiry = 5 * time.Minute

// MemoryService handles the space's shared keepsake feed: photo uploads via
// presigned S3 URLs plus date/spark entries recorded by the app.
type MemoryService struct {
	memoryRepo repository.MemoryStore
	userRepo   repository.UserStore
	catalog    *catalog.Catalog
	s3Client   *s3.Client
	s3Bucket   string
	s3Region   string
}

// NewMemoryService creates a new memory service
func NewMemoryService(
	memoryRepo repository.MemoryStore,
	userRepo repository.UserStore,
	cat *catalog.Catalog,
	cfg appconfig.AWSConfig,
) (*MemoryService, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &MemoryService{
		memoryRepo: memoryRepo,
		userRepo:   userRepo,
		catalog:    cat,
		s3Client:   s3Client,
		s3Bucket:   cfg.S3Bucket,
		s3Region:   cfg.Region,
	}, nil
}

// UploadResponse carries the pre-signed URL for a photo memory upload
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	MemoryID  string `json:"memory_id"`
	ExpiresIn int    `json:"expires_in"`
}

// CreatePhotoMemory creates a photo memory row and returns a pre-signed PUT
// URL the client uploads the image to.
func (s *MemoryService) CreatePhotoMemory(ctx context.Context, userID, caption, contentType string) (*UploadResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.SpaceID == nil {
		return nil, ErrNotSpaceMember
	}

	memoryID := uuid.New().String()
	s3Key := fmt.Sprintf("%s/%s.jpg", *user.SpaceID, memoryID)

	presignClient := s3.NewPresignClient(s.s3Client)
	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Bucket),
		Key:         aws.String(s3Key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	s3URL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.s3Bucket, s.s3Region, s3Key)
	memory := &models.Memory{
		ID:        memoryID,
		SpaceID:   *user.SpaceID,
		UserID:    userID,
		Kind:      models.MemoryPhoto,
		Caption:   caption,
		S3URL:     s3URL,
		TakenAt:   time.Now(),
		CreatedAt: time.Now(),
	}
	if err := s.memoryRepo.Create(ctx, memory); err != nil {
		return nil, fmt.Errorf("failed to create memory record: %w", err)
	}

	return &UploadResponse{
		UploadURL: request.URL,
		MemoryID:  memoryID,
		ExpiresIn: int(presignExpiry.Seconds()),
	}, nil
}

// RecordDateMemory stores a completed guided date as a memory entry, captioned
// with the activity's title when the template is known.
func (s *MemoryService) RecordDateMemory(ctx context.Context, userID, spaceID, sessionID, templateID string) (*models.Memory, error) {
	caption := templateID
	if s.catalog != nil {
		if entry := s.catalog.FindActivity(templateID); entry != nil {
			caption = entry.Activity.Title
		}
	}

	memory := &models.Memory{
		ID:        uuid.New().String(),
		SpaceID:   spaceID,
		UserID:    userID,
		Kind:      models.MemoryDate,
		Caption:   caption,
		SessionID: &sessionID,
		TakenAt:   time.Now(),
		CreatedAt: time.Now(),
	}
	if err := s.memoryRepo.Create(ctx, memory); err != nil {
		return nil, fmt.Errorf("failed to record date memory: %w", err)
	}
	return memory, nil
}

// RecordSparkMemory stores a spark-score milestone as a memory entry
func (s *MemoryService) RecordSparkMemory(ctx context.Context, userID, spaceID string, score int) (*models.Memory, error) {
	memory := &models.Memory{
		ID:        uuid.New().String(),
		SpaceID:   spaceID,
		UserID:    userID,
		Kind:      models.MemorySpark,
		Caption:   fmt.Sprintf("Spark score reached %d", score),
		TakenAt:   time.Now(),
		CreatedAt: time.Now(),
	}
	if err := s.memoryRepo.Create(ctx, memory); err != nil {
		return nil, fmt.Errorf("failed to record spark memory: %w", err)
	}
	return memory, nil
}

// ConfirmUpload updates the memory's S3 URL after the client finished uploading
func (s *MemoryService) ConfirmUpload(ctx context.Context, memoryID, s3URL string) error {
	return s.memoryRepo.UpdateS3URL(ctx, memoryID, s3URL)
}

// ListMemories retrieves the memory feed for the user's space
func (s *MemoryService) ListMemories(ctx context.Context, userID string, limit, offset int) ([]*models.Memory, int, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get user: %w", err)
	}
	if user.SpaceID == nil {
		return nil, 0, ErrNotSpaceMember
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	return s.memoryRepo.ListBySpace(ctx, *user.SpaceID, limit, offset)
}
