// Package protected keeps protected-area polygons in memory behind an
// R-tree index so classification can resolve them without network calls.
package protected

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"

	"canopy/internal/metrics"
	"canopy/internal/model"
	pg "canopy/internal/postgres"
	"canopy/internal/service/storage"
)

// DefaultLookupCache bounds the number of cached region lookups.
const DefaultLookupCache = 32

// AreaSpatial represents a protected area with its spatial information for R-tree indexing
type AreaSpatial struct {
	ID          string
	Polygon     *orb.Polygon
	BoundingBox *orb.Bound
	Area        *model.ProtectedArea
}

// Bounds implements the rtreego.Spatial interface
// Returns the bounding rectangle of the area for R-tree indexing
func (a *AreaSpatial) Bounds() rtreego.Rect {
	minX, minY := a.BoundingBox.Min[0], a.BoundingBox.Min[1]
	maxX, maxY := a.BoundingBox.Max[0], a.BoundingBox.Max[1]

	rect, _ := rtreego.NewRect(
		rtreego.Point{minX, minY},
		[]float64{maxX - minX, maxY - minY},
	)

	return rect
}

// Store manages protected-area data and spatial indexing
type Store struct {
	storage      storage.Storage[string, *model.ProtectedArea]
	spatialIndex *rtreego.Rtree // R-tree spatial index
	indexMutex   sync.RWMutex   // Mutex for thread-safe index operations
	snapshots    map[string]int // Row counts per snapshot label
	lookupCache  *lru.Cache[string, []orb.Polygon]
	initialized  bool
	initMutex    sync.RWMutex
}

var (
	storeInstance *Store
	storeOnce     sync.Once
)

// GetStore returns the singleton instance of the Store
func GetStore() *Store {
	storeOnce.Do(func() {
		storeInstance = NewStore()
	})
	return storeInstance
}

// NewStore builds an empty store. The backing storage is sharded since a
// national import holds hundreds of thousands of areas.
func NewStore() *Store {
	cache, _ := lru.New[string, []orb.Polygon](DefaultLookupCache)
	return &Store{
		storage:      storage.NewShardedMemoryStorage[string, *model.ProtectedArea](16, nil),
		spatialIndex: rtreego.NewTree(2, 25, 50), // 2D index with min 25, max 50 entries per node
		snapshots:    make(map[string]int),
		lookupCache:  cache,
	}
}

// InitStore initializes the store by loading data from PostgreSQL
func (s *Store) InitStore(ctx context.Context) error {
	s.initMutex.Lock()
	defer s.initMutex.Unlock()

	if s.initialized {
		log.Println("Protected-area store already initialized, skipping")
		return nil
	}

	log.Println("=== Starting protected-area store initialization ===")
	totalStartTime := time.Now()

	// Step 1: Load data from PostgreSQL
	log.Println("Step 1: Loading protected areas from PostgreSQL...")
	pgLoadStart := time.Now()
	areas, err := s.loadAllAreasFromPG(ctx)
	if err != nil {
		log.Printf("ERROR: Failed to load protected areas after %v: %v", time.Since(pgLoadStart), err)
		return fmt.Errorf("failed to load protected areas from PostgreSQL: %w", err)
	}
	pgLoadDuration := time.Since(pgLoadStart)
	log.Printf("PostgreSQL loading completed: %d areas loaded in %v", len(areas), pgLoadDuration)

	// Step 2: Parse area geometries
	log.Println("Step 2: Parsing area geometries...")
	parseStart := time.Now()
	kept := make([]*model.ProtectedArea, 0, len(areas))
	for _, area := range areas {
		if err := area.EnsureGeometry(); err != nil {
			log.Printf("Skipping area with bad geometry: %v", err)
			continue
		}
		kept = append(kept, area)
	}
	parseDuration := time.Since(parseStart)
	log.Printf("Geometry parsing completed: %d of %d areas kept in %v", len(kept), len(areas), parseDuration)

	// Step 3: Load areas into memory storage
	log.Println("Step 3: Loading areas into memory storage...")
	memoryLoadStart := time.Now()
	for i, area := range kept {
		s.storage.Set(area.ID, area)

		if (i+1)%100000 == 0 || i == len(kept)-1 {
			log.Printf("Memory loading progress: %d/%d areas (%.1f%%)",
				i+1, len(kept), float64(i+1)/float64(len(kept))*100)
		}
	}
	memoryLoadDuration := time.Since(memoryLoadStart)
	log.Printf("Memory loading completed: %d areas stored in %v", len(kept), memoryLoadDuration)

	// Step 4: Build spatial index
	log.Println("Step 4: Building spatial R-tree index...")
	indexBuildStart := time.Now()
	s.rebuildSpatialIndex()
	indexBuildDuration := time.Since(indexBuildStart)
	log.Printf("Spatial index built in %v", indexBuildDuration)

	// Final summary
	totalDuration := time.Since(totalStartTime)
	log.Printf("=== Protected-area store initialization completed ===")
	log.Printf("Total areas: %d", s.storage.Count())
	log.Printf("Snapshots: %v", s.SnapshotCounts())
	log.Printf("Total time: %v", totalDuration)

	s.initialized = true
	return nil
}

// LoadAreas adds areas directly and refreshes the snapshot counts and the
// spatial index. The importer and tests use it in place of InitStore.
func (s *Store) LoadAreas(areas []*model.ProtectedArea) error {
	for _, area := range areas {
		if err := area.EnsureGeometry(); err != nil {
			return err
		}
		s.storage.Set(area.ID, area)
	}
	s.rebuildSpatialIndex()

	s.initMutex.Lock()
	s.initialized = true
	s.initMutex.Unlock()
	return nil
}

// loadAllAreasFromPG loads all protected areas from PostgreSQL
func (s *Store) loadAllAreasFromPG(ctx context.Context) ([]*model.ProtectedArea, error) {
	db := pg.GetDB()
	var pgAreas []*model.ProtectedAreaPG

	result := db.WithContext(ctx).Find(&pgAreas)
	if result.Error != nil {
		return nil, result.Error
	}

	// Convert PG models to in-memory models
	areas := make([]*model.ProtectedArea, len(pgAreas))
	for i, pgArea := range pgAreas {
		areas[i] = model.ProtectedAreaFromPG(pgArea)
	}

	return areas, nil
}

// rebuildSpatialIndex rebuilds the spatial index and the snapshot counts
func (s *Store) rebuildSpatialIndex() {
	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()

	// Create a new R-tree
	s.spatialIndex = rtreego.NewTree(2, 25, 50)
	s.snapshots = make(map[string]int)

	// Add all areas to the index
	s.storage.ForEach(func(id string, area *model.ProtectedArea) bool {
		if area.Polygon == nil || area.BoundingBox == nil {
			if err := area.EnsureGeometry(); err != nil {
				log.Printf("Skipping unindexable area: %v", err)
				return true
			}
		}
		s.spatialIndex.Insert(&AreaSpatial{
			ID:          area.ID,
			Polygon:     area.Polygon,
			BoundingBox: area.BoundingBox,
			Area:        area,
		})
		s.snapshots[area.Snapshot]++
		return true
	})

	// Cached lookups may refer to the old index contents
	s.lookupCache.Purge()
}

// ResolveSnapshot maps an acquisition date to the monthly snapshot covering
// it, falling back to the rolling snapshot when that month was never
// imported.
func (s *Store) ResolveSnapshot(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return model.SnapshotCurrent
	}
	month := t.Format("200601")

	s.indexMutex.RLock()
	defer s.indexMutex.RUnlock()
	if s.snapshots[month] > 0 {
		return month
	}
	return model.SnapshotCurrent
}

// SnapshotCounts returns the number of indexed areas per snapshot label.
func (s *Store) SnapshotCounts() map[string]int {
	s.indexMutex.RLock()
	defer s.indexMutex.RUnlock()

	counts := make(map[string]int, len(s.snapshots))
	for k, v := range s.snapshots {
		counts[k] = v
	}
	return counts
}

// Count returns the number of stored areas.
func (s *Store) Count() int {
	return s.storage.Count()
}

// AreasIntersecting returns the polygons of the date's snapshot that overlap
// the region. An uninitialized store resolves to no areas rather than an
// error, so classification can proceed without the natural-forest upgrade.
func (s *Store) AreasIntersecting(region orb.Bound, date string) ([]orb.Polygon, error) {
	s.initMutex.RLock()
	ready := s.initialized
	s.initMutex.RUnlock()
	if !ready {
		return nil, nil
	}

	snapshot := s.ResolveSnapshot(date)
	key := fmt.Sprintf("%s|%.6f|%.6f|%.6f|%.6f",
		snapshot, region.Min[0], region.Min[1], region.Max[0], region.Max[1])
	if cached, ok := s.lookupCache.Get(key); ok {
		metrics.ProtectedLookupsTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.ProtectedLookupsTotal.WithLabelValues("miss").Inc()

	searchRect, err := rtreego.NewRect(
		rtreego.Point{region.Min[0], region.Min[1]},
		[]float64{
			max(region.Max[0]-region.Min[0], 1e-9),
			max(region.Max[1]-region.Min[1], 1e-9),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid search rect: %w", err)
	}

	s.indexMutex.RLock()
	spatialResults := s.spatialIndex.SearchIntersect(searchRect)
	s.indexMutex.RUnlock()

	// Candidates matched on bounding boxes only, keep the ones whose
	// polygon really overlaps the region.
	var result []orb.Polygon
	for _, item := range spatialResults {
		areaSpatial := item.(*AreaSpatial)
		if areaSpatial.Area.Snapshot != snapshot {
			continue
		}
		clipped := clip.Polygon(region, areaSpatial.Polygon.Clone())
		if len(clipped) == 0 || planar.Area(clipped) <= 0 {
			continue
		}
		result = append(result, *areaSpatial.Polygon)
	}

	s.lookupCache.Add(key, result)
	return result, nil
}
