package mot

import (
	"math"
	"sort"

	"github.com/arthurkushman/go-hungarian"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MatchingAlgorithm is for algorithm type for matching rows to columns of a similarity matrix
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmGreedy repeatedly takes the global maximum of the matrix. Ties go to the lowest row, then the lowest column.
	MatchingAlgorithmGreedy MatchingAlgorithm = iota
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) to maximize the total similarity
	MatchingAlgorithmHungarian
)

var matchingAlgorithmNames = map[MatchingAlgorithm]string{
	MatchingAlgorithmGreedy:    "greedy",
	MatchingAlgorithmHungarian: "hungarian",
}

func (a MatchingAlgorithm) String() string {
	return matchingAlgorithmNames[a]
}

// MarshalText implements encoding.TextMarshaler
func (a MatchingAlgorithm) MarshalText() ([]byte, error) {
	name, ok := matchingAlgorithmNames[a]
	if !ok {
		return nil, errors.Errorf("unknown matching algorithm %d", a)
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *MatchingAlgorithm) UnmarshalText(text []byte) error {
	for k, v := range matchingAlgorithmNames {
		if v == string(text) {
			*a = k
			return nil
		}
	}
	return errors.Errorf("unknown matching algorithm %q", text)
}

// match is a (row, column) pair of an assignment
type match struct {
	row int
	col int
}

// assign matches rows to columns of the similarity matrix. Pairs below threshold are never matched.
// Matches are returned in the order they were made.
func assign(algorithm MatchingAlgorithm, similarity *mat.Dense, threshold float64) []match {
	if similarity == nil {
		return nil
	}
	switch algorithm {
	case MatchingAlgorithmHungarian:
		return hungarianAssign(similarity, threshold)
	default:
		return greedyAssign(similarity, threshold)
	}
}

// greedyAssign takes the global maximum, then invalidates its row and column, until the maximum is below threshold.
func greedyAssign(similarity *mat.Dense, threshold float64) []match {
	rows, cols := similarity.Dims()
	work := mat.DenseCopyOf(similarity)
	matches := make([]match, 0)
	for len(matches) < rows && len(matches) < cols {
		bestRow, bestCol := -1, -1
		best := math.Inf(-1)
		for i := 0; i < rows; i++ {
			row := work.RawRowView(i)
			j := floats.MaxIdx(row)
			if row[j] > best {
				best = row[j]
				bestRow = i
				bestCol = j
			}
		}
		if bestRow < 0 || best < threshold {
			break
		}
		matches = append(matches, match{row: bestRow, col: bestCol})
		// Remove from the matrix
		for j := 0; j < cols; j++ {
			work.Set(bestRow, j, math.Inf(-1))
		}
		for i := 0; i < rows; i++ {
			work.Set(i, bestCol, math.Inf(-1))
		}
	}
	return matches
}

// hungarianAssign solves the assignment on a square-padded copy of the matrix.
// Entries below threshold are zeroed so they never outweigh padding.
func hungarianAssign(similarity *mat.Dense, threshold float64) []match {
	rows, cols := similarity.Dims()
	if rows == 0 || cols == 0 {
		return nil
	}
	paddedSize := rows
	if cols > paddedSize {
		paddedSize = cols
	}
	paddedMatrix := make([][]float64, paddedSize)
	for i := 0; i < paddedSize; i++ {
		paddedMatrix[i] = make([]float64, paddedSize)
	}
	candidates := 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := similarity.At(i, j); v >= threshold && v > 0 {
				paddedMatrix[i][j] = v
				candidates++
			}
		}
	}
	if candidates == 0 {
		return nil
	}
	assignmentsMap := hungarian.SolveMax(paddedMatrix)
	matches := make([]match, 0, len(assignmentsMap))
	for rowIdx, rowMap := range assignmentsMap {
		for colIdx := range rowMap {
			if rowIdx < rows && colIdx < cols && similarity.At(rowIdx, colIdx) >= threshold {
				matches = append(matches, match{row: rowIdx, col: colIdx})
			}
		}
	}
	// Map iteration order is random
	sort.Slice(matches, func(a, b int) bool {
		return matches[a].row < matches[b].row
	})
	return matches
}
