package model

import "image/color"

// Class is a land-cover class index in the enhanced classification raster.
// Indices 0-8 are the engine's native classes, 9 is cloud, and 10 marks
// trees that fall inside a protected area.
type Class int

const (
	ClassWater Class = iota
	ClassTrees
	ClassGrass
	ClassFloodedVegetation
	ClassCrops
	ClassShrubAndScrub
	ClassBuilt
	ClassBare
	ClassSnowAndIce
	ClassCloud
	ClassNaturalForest

	NumClasses = 11
)

// Render colors, one per class. Unmapped pixels render black, which is why
// cloud shares black with the background.
var classColors = [NumClasses]color.NRGBA{
	{65, 155, 223, 255},
	{57, 125, 73, 255},
	{136, 176, 83, 255},
	{122, 135, 198, 255},
	{228, 150, 53, 255},
	{223, 195, 90, 255},
	{196, 40, 27, 255},
	{165, 155, 143, 255},
	{179, 159, 225, 255},
	{0, 0, 0, 255},
	{0, 64, 0, 255},
}

var classLabels = [NumClasses]string{
	"Water",
	"Trees",
	"Grass",
	"Flooded Vegetation",
	"Crops",
	"Shrub & Scrub",
	"Built",
	"Bare",
	"Snow & Ice",
	"Cloud",
	"Natural Forest",
}

var classStatNames = [NumClasses]string{
	"water",
	"trees",
	"grass",
	"flooded_vegetation",
	"crops",
	"shrub_and_scrub",
	"built",
	"bare",
	"snow_and_ice",
	"cloud",
	"natural_forest",
}

// Valid reports whether the index is one of the known classes.
func (c Class) Valid() bool {
	return c >= 0 && c < NumClasses
}

// Color returns the render color for the class.
func (c Class) Color() color.NRGBA {
	return classColors[c]
}

// Label returns the human-readable legend label.
func (c Class) Label() string {
	return classLabels[c]
}

// StatName returns the snake_case key used in statistics output.
func (c Class) StatName() string {
	return classStatNames[c]
}

// Classes returns all classes in legend order.
func Classes() []Class {
	out := make([]Class, NumClasses)
	for i := range out {
		out[i] = Class(i)
	}
	return out
}
