// Package stats turns the engine's pixel-frequency histogram into the area
// statistics artifact. Pixel counts only ever set proportions, the absolute
// scale comes from the externally supplied ground-truth area.
package stats

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"

	"canopy/internal/model"
)

// ClassStat is one land-cover class's share of the analyzed region. The
// percentage is relative to the total area.
type ClassStat struct {
	AreaKm2    float64 `json:"area_km2"`
	Percentage float64 `json:"percentage"`
}

// NamedClassStat attaches the class's snake_case name to its share.
type NamedClassStat struct {
	Name string
	ClassStat
}

// ClassList holds the non-zero classes sorted by area, largest first. It
// marshals as a JSON object whose keys keep that order.
type ClassList []NamedClassStat

func (l ClassList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.ClassStat)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON rebuilds the list from the JSON object form. Object key
// order is not recoverable, so the canonical area sort is reapplied.
func (l *ClassList) UnmarshalJSON(data []byte) error {
	var byName map[string]ClassStat
	if err := json.Unmarshal(data, &byName); err != nil {
		return err
	}
	list := make(ClassList, 0, len(byName))
	for name, stat := range byName {
		list = append(list, NamedClassStat{Name: name, ClassStat: stat})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].AreaKm2 != list[j].AreaKm2 {
			return list[i].AreaKm2 > list[j].AreaKm2
		}
		return list[i].Name < list[j].Name
	})
	*l = list
	return nil
}

// Get returns the stat for a class name, if present.
func (l ClassList) Get(name string) (ClassStat, bool) {
	for _, c := range l {
		if c.Name == name {
			return c.ClassStat, true
		}
	}
	return ClassStat{}, false
}

// Report is the statistics artifact of one analysis run.
//
// Two percentage conventions coexist on purpose: NaturalForestPercentage
// and OtherTreesPercentage are fractions of the combined forest area, since
// the natural-to-total forest ratio is the metric of interest, while the
// per-class percentages in LandCoverClasses are fractions of the total
// area. Zero denominators yield zero, never an error.
type Report struct {
	Date                    string    `json:"date"`
	TotalAreaKm2            float64   `json:"total_area_km2"`
	ForestAreaKm2           float64   `json:"forest_area_km2"`
	NaturalForestKm2        float64   `json:"natural_forest_km2"`
	NaturalForestPercentage float64   `json:"natural_forest_percentage"`
	OtherTreesKm2           float64   `json:"other_trees_km2"`
	OtherTreesPercentage    float64   `json:"other_trees_percentage"`
	LandCoverClasses        ClassList `json:"land_cover_classes"`
}

// Calculate distributes the ground-truth area over the histogram's class
// frequencies. The histogram's own pixel total is the denominator, so the
// class areas always sum to the ground truth regardless of how many pixels
// the engine actually enumerated. Classes absent from the histogram count
// as zero; zero-area classes stay out of the emitted class list but still
// feed the forest totals.
func Calculate(hist map[model.Class]float64, groundTruthKm2 float64, date string) *Report {
	var totalPixels float64
	for class, count := range hist {
		if !class.Valid() || count <= 0 {
			continue
		}
		totalPixels += count
	}

	areas := make(map[model.Class]float64, model.NumClasses)
	for _, class := range model.Classes() {
		count := hist[class]
		if totalPixels > 0 && count > 0 {
			areas[class] = round5(count / totalPixels * groundTruthKm2)
		} else {
			areas[class] = 0
		}
	}

	naturalForest := areas[model.ClassNaturalForest]
	trees := areas[model.ClassTrees]
	totalForest := naturalForest + trees

	report := &Report{
		Date:             date,
		TotalAreaKm2:     round5(groundTruthKm2),
		ForestAreaKm2:    round5(totalForest),
		NaturalForestKm2: round5(naturalForest),
		OtherTreesKm2:    round5(trees),
	}
	if totalForest > 0 {
		report.NaturalForestPercentage = round5(naturalForest / totalForest * 100)
		report.OtherTreesPercentage = round5(trees / totalForest * 100)
	}

	for _, class := range model.Classes() {
		area := areas[class]
		if area <= 0 {
			continue
		}
		stat := ClassStat{AreaKm2: round5(area)}
		if groundTruthKm2 > 0 {
			stat.Percentage = round5(area / groundTruthKm2 * 100)
		}
		report.LandCoverClasses = append(report.LandCoverClasses, NamedClassStat{
			Name:      class.StatName(),
			ClassStat: stat,
		})
	}
	sort.SliceStable(report.LandCoverClasses, func(i, j int) bool {
		return report.LandCoverClasses[i].AreaKm2 > report.LandCoverClasses[j].AreaKm2
	})

	return report
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
