package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rohits-web03/passkeyd/internal/config"
	"github.com/rohits-web03/passkeyd/internal/models"
)

// Snapshot is the archived form of one vault version. The ciphertext stays
// opaque; the archive only stores what the client uploaded.
type Snapshot struct {
	UserID        uuid.UUID `json:"user_id"`
	EncryptedData string    `json:"encrypted_data"`
	IV            string    `json:"iv"`
	Version       int       `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Archive keeps every vault version in an S3 compatible bucket under
// vaults/<user_id>/<version>.json.
type Archive struct {
	client *s3.Client
	bucket string
}

// NewArchive builds an archive client using static credentials and an optional custom endpoint.
func NewArchive(cfg config.ArchiveConfig) *Archive {
	awsCfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Region:      cfg.Region,
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
		// R2 and older MinIO releases reject the default flexible checksum trailers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Archive{client: client, bucket: cfg.Bucket}
}

func userPrefix(userID uuid.UUID) string {
	return fmt.Sprintf("vaults/%s/", userID)
}

// SnapshotKey is the object key of one vault version.
func SnapshotKey(userID uuid.UUID, version int) string {
	return fmt.Sprintf("%s%d.json", userPrefix(userID), version)
}

// Put stores the current state of vault as a new snapshot object.
func (a *Archive) Put(ctx context.Context, vault *models.Vault) error {
	body, err := json.Marshal(Snapshot{
		UserID:        vault.UserID,
		EncryptedData: vault.EncryptedData,
		IV:            vault.IV,
		Version:       vault.Version,
		UpdatedAt:     vault.UpdatedAt,
	})
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(SnapshotKey(vault.UserID, vault.Version)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// Exists checks if a given object key exists in the bucket.
// Returns true if the object exists, false if not, and an error if something went wrong.
func (a *Archive) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NotFound
		if errors.As(err, &nsk) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PresignGet creates a presigned URL for downloading an archived snapshot.
func (a *Archive) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	presigner := s3.NewPresignClient(a.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Purge deletes every snapshot of the user.
func (a *Archive) Purge(ctx context.Context, userID uuid.UUID) error {
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(userPrefix(userID)),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list snapshots: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, s3types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = a.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(a.bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}
	}
	return nil
}
