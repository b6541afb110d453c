package redis

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"canopy/internal/config"
	"canopy/internal/metrics"
)

// StatsCacheKey derives a stable cache key from the analysis inputs. The
// boundary WKT can run to megabytes, so the key carries a digest instead.
func StatsCacheKey(boundaryWKT, startDate, endDate string, groundTruthKm2 float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%.5f", boundaryWKT, startDate, endDate, groundTruthKm2)
	return "stats:" + hex.EncodeToString(h.Sum(nil)[:16])
}

// CacheStats stores a marshaled statistics report. Caching is best effort,
// failures only log.
func CacheStats(key string, payload []byte) {
	if redisClient == nil {
		return
	}
	if err := Set(key, string(payload), config.StatsCacheTTL); err != nil {
		log.Printf("Failed to cache stats for %s: %v", key, err)
	}
}

// CachedStats returns a previously stored report payload.
func CachedStats(key string) ([]byte, bool) {
	if redisClient == nil {
		return nil, false
	}
	val, err := Get(key)
	if err != nil {
		if err != redis.Nil {
			log.Printf("Stats cache read failed for %s: %v", key, err)
		}
		metrics.StatsCacheMissesTotal.Inc()
		return nil, false
	}
	metrics.StatsCacheHitsTotal.Inc()
	return []byte(val), true
}
