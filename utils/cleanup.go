package utils

import (
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/qaboard/config"
	"github.com/cppla/qaboard/models"
)

// StartAttachmentCleaner launches a background goroutine that periodically
// deletes expired reply attachments recorded in the database. Best-effort;
// failures are logged and retried on the next tick.
func StartAttachmentCleaner(db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup.
			time.Sleep(interval)
			if db == nil {
				continue
			}
			if !config.Get().UploadsSelfDestructEnabled {
				continue
			}
			var items []models.UploadedFile
			if err := db.Where("expire_at <= ?", time.Now()).Limit(100).Find(&items).Error; err != nil {
				if Sugar != nil {
					Sugar.Warnf("attachment cleaner query failed: %v", err)
				}
				continue
			}
			for _, it := range items {
				if it.FilePath != "" {
					_ = os.Remove(it.FilePath)
				}
				// Remove the row regardless of file deletion outcome.
				if err := db.Delete(&models.UploadedFile{}, it.ID).Error; err != nil && Sugar != nil {
					Sugar.Warnf("attachment cleaner delete row failed: %v", err)
				}
			}
		}
	}()
}
