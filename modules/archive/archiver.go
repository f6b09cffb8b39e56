package archive

import (
	"bytes"
	"fmt"
	"log"
	"time"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"

	"storyreel-server/modules/common/config"
	"storyreel-server/modules/common/model"
)

// Archiver uploads completed videos to Supabase Storage so they survive
// the process. The in-memory job table remains authoritative for
// status; this is a one-way sink.
type Archiver struct {
	client *supabase.Client
	bucket string
}

// NewArchiver builds the archiver from config, or nil when archiving is
// disabled or the client cannot be created.
func NewArchiver() *Archiver {
	cfg := config.GetConfig()
	if !cfg.ArchiveEnabled {
		return nil
	}

	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("⚠️ Archive disabled: failed to create Supabase client: %v", err)
		return nil
	}

	log.Printf("✅ Archive enabled (bucket: %s)", cfg.ArchiveBucket)
	return &Archiver{client: client, bucket: cfg.ArchiveBucket}
}

// Store uploads one finished video. Errors are logged, not returned;
// archiving never affects job outcomes.
func (a *Archiver) Store(jobID string, video model.VideoArtifact) {
	path := fmt.Sprintf("videos/%s/%s.mp4", time.Now().UTC().Format("2006-01-02"), jobID)
	contentType := video.MimeType
	if contentType == "" {
		contentType = "video/mp4"
	}

	_, err := a.client.Storage.UploadFile(a.bucket, path, bytes.NewReader(video.Data), storage_go.FileOptions{
		ContentType: &contentType,
	})
	if err != nil {
		log.Printf("❌ Failed to archive video for job %s: %v", jobID, err)
		return
	}

	log.Printf("📦 Archived video for job %s: %s/%s (%d bytes)", jobID, a.bucket, path, len(video.Data))
}
