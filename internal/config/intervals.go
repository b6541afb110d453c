package config

import "time"

// Worker intervals
const (
	// ArtifactCleanupInterval defines how often the cleanup worker scans the output directory
	ArtifactCleanupInterval = 1 * time.Hour

	// ArtifactMaxAge defines how long finished artifacts stay on disk
	ArtifactMaxAge = 14 * 24 * time.Hour

	// MemoryStatsInterval defines how often to log runtime memory statistics
	MemoryStatsInterval = 30 * time.Second

	// StatsCacheTTL defines how long computed statistics stay in Redis
	StatsCacheTTL = 24 * time.Hour
)
