package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"orvia_back_end/internal/database"

	"github.com/minio/minio-go/v7"
)

// MinioArchiver conserve les payloads bruts des webhooks providers dans MinIO.
// Piste d'audit uniquement : jamais relu par la réconciliation.
type MinioArchiver struct {
	bucket string
}

func NewMinioArchiver() *MinioArchiver {
	return &MinioArchiver{bucket: os.Getenv("MINIO_BUCKET")}
}

func (a *MinioArchiver) Archive(ctx context.Context, provider, providerTxID string, payload []byte) error {
	if database.MinIO == nil {
		return fmt.Errorf("client MinIO non initialisé")
	}

	objectName := fmt.Sprintf("webhooks/%s/%s/%s.json",
		provider, time.Now().UTC().Format("2006/01/02"), providerTxID)

	_, err := database.MinIO.PutObject(ctx, a.bucket, objectName,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("archivage webhook %s: %w", providerTxID, err)
	}
	return nil
}
