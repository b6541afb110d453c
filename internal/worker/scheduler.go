package worker

import (
	"log"
)

// StartAllWorkers initializes and starts all background workers
func StartAllWorkers(outputDir string) {
	log.Println("Starting all workers...")

	StartArtifactCleanupWorker(outputDir)
	StartMemoryStatsWorker()

	log.Println("All workers started")
}
