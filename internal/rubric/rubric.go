// Package rubric holds the fixed six-dimension classroom performance rubric
// and the scoring rules applied to it.
package rubric

import (
	"fmt"
	"strings"
)

// Dimension identifies one of the rubric categories.
type Dimension string

// Level is the ordinal rating given to a dimension.
type Level string

const (
	Performance1 Dimension = "performance1"
	Performance2 Dimension = "performance2"
	Performance3 Dimension = "performance3"
	Performance4 Dimension = "performance4"
	Performance5 Dimension = "performance5"
	Performance6 Dimension = "performance6"
)

const (
	LevelI   Level = "I"
	LevelII  Level = "II"
	LevelIII Level = "III"
	LevelIV  Level = "IV"
)

// DefaultLevel is assigned to dimensions left unrated.
const DefaultLevel = LevelI

var dimensions = []Dimension{Performance1, Performance2, Performance3, Performance4, Performance5, Performance6}

var levelLabels = map[Level]string{
	LevelI:   "Insuficiente (Necesita Mejora Sustancial)",
	LevelII:  "En Desarrollo (Necesita Reforzamiento)",
	LevelIII: "Competente (Desempeño Sólido)",
	LevelIV:  "Sobresaliente (Ejemplar)",
}

// Dimensions returns the rubric dimensions in report order.
func Dimensions() []Dimension {
	out := make([]Dimension, len(dimensions))
	copy(out, dimensions)
	return out
}

// Index returns the 1-based position of the dimension.
func (d Dimension) Index() int {
	for i, dim := range dimensions {
		if dim == d {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether the level is one of I..IV.
func (l Level) Valid() bool {
	_, ok := levelLabels[l]
	return ok
}

// ParseLevel normalises user input into a Level.
func ParseLevel(raw string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(raw)))
	if !level.Valid() {
		return "", fmt.Errorf("invalid performance level %q", raw)
	}
	return level, nil
}

// Title returns the human readable dimension title.
func Title(d Dimension) string {
	title, ok := dimensionTitles[d]
	if !ok {
		panic(fmt.Sprintf("rubric: unknown dimension %q", d))
	}
	return title
}

// Description returns the rubric sentence for a dimension at a level.
func Description(d Dimension, l Level) string {
	byLevel, ok := dimensionDescriptions[d]
	if !ok {
		panic(fmt.Sprintf("rubric: unknown dimension %q", d))
	}
	text, ok := byLevel[l]
	if !ok {
		panic(fmt.Sprintf("rubric: unknown level %q for %s", l, d))
	}
	return text
}

// LevelLabel returns the overall label for a level.
func LevelLabel(l Level) string {
	label, ok := levelLabels[l]
	if !ok {
		panic(fmt.Sprintf("rubric: unknown level %q", l))
	}
	return label
}
