package worker

import (
	"log"
	"runtime"
	"time"

	"canopy/internal/config"
)

// StartMemoryStatsWorker starts the worker that periodically logs runtime
// memory statistics
func StartMemoryStatsWorker() {
	ticker := time.NewTicker(config.MemoryStatsInterval)
	go func() {
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			log.Printf("Alloc = %v MiB, TotalAlloc = %v MiB, Sys = %v MiB, NumGC = %v",
				m.Alloc/1024/1024, m.TotalAlloc/1024/1024, m.Sys/1024/1024, m.NumGC)
		}
	}()

	log.Println("Memory stats worker started with interval:", config.MemoryStatsInterval)
}
