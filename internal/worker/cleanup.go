package worker

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"canopy/internal/config"
)

// StartArtifactCleanupWorker starts the worker that removes stale artifacts
// from the output directory
func StartArtifactCleanupWorker(outputDir string) {
	ticker := time.NewTicker(config.ArtifactCleanupInterval)
	go func() {
		for range ticker.C {
			removed, err := CleanupArtifacts(outputDir, config.ArtifactMaxAge)
			if err != nil {
				log.Printf("Artifact cleanup failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("Artifact cleanup removed %d stale files", removed)
			}
		}
	}()

	log.Println("Artifact cleanup worker started with interval:", config.ArtifactCleanupInterval)
}

// CleanupArtifacts removes generated files in outputDir older than maxAge.
// Subdirectories hold user uploads and are left alone.
func CleanupArtifacts(outputDir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(outputDir, entry.Name())); err != nil {
			log.Printf("Failed to remove %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}
