package rubric

// MaxScore is the highest attainable total.
const MaxScore = 24

// Band is the qualitative bucket for a total score.
type Band string

const (
	BandOutstanding  Band = "Outstanding"
	BandSatisfactory Band = "Satisfactory"
	BandInProgress   Band = "InProgress"
	BandBeginning    Band = "Beginning"
)

var bandTexts = map[Band]string{
	BandOutstanding:  "Destacado (21-24 puntos)",
	BandSatisfactory: "Satisfactorio (15-20 puntos)",
	BandInProgress:   "En proceso (9-14 puntos)",
	BandBeginning:    "Inicio (6-8 puntos)",
}

// Levels is the set of six ratings of a single evaluation.
type Levels [6]Level

// LevelValue maps a level to its points. Unknown levels score 0.
func LevelValue(l Level) int {
	switch l {
	case LevelI:
		return 1
	case LevelII:
		return 2
	case LevelIII:
		return 3
	case LevelIV:
		return 4
	default:
		return 0
	}
}

// TotalScore sums the level values of all six dimensions.
func TotalScore(levels Levels) int {
	total := 0
	for _, l := range levels {
		total += LevelValue(l)
	}
	return total
}

// BandOf buckets a total score.
func BandOf(total int) Band {
	switch {
	case total >= 21:
		return BandOutstanding
	case total >= 15:
		return BandSatisfactory
	case total >= 9:
		return BandInProgress
	default:
		return BandBeginning
	}
}

// Text returns the report wording for the band.
func (b Band) Text() string {
	return bandTexts[b]
}
