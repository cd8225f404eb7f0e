// Package merge consolidates over-segmented OCR detections into blocks that can
// be rendered as single translated units.
package merge

import (
	"math"

	"github.com/lehigh-university-libraries/panelator/internal/models"
)

// Tolerances used by Blocks, in source image pixels.
type Tolerances struct {
	Width float32 `yaml:"width"`
	X     float32 `yaml:"x"`
	Y     float32 `yaml:"y"`
}

// DefaultTolerances returns the tolerances the pipeline uses when none are configured.
func DefaultTolerances() Tolerances {
	return Tolerances{Width: 50, X: 30, Y: 30}
}

// Blocks merges blocks in a single greedy sweep over the input order.
// Input order matters: a block only merges into the block accumulated right
// before it, so two mergeable blocks separated by an unrelated one stay apart.
func Blocks(blocks []models.TextBlock, widthTolerance, xTolerance, yTolerance float32) []models.TextBlock {
	if len(blocks) == 0 {
		return []models.TextBlock{}
	}

	result := make([]models.TextBlock, 0, len(blocks))
	current := blocks[0]
	for _, next := range blocks[1:] {
		if shouldMerge(current, next, widthTolerance, xTolerance, yTolerance) {
			current = union(current, next)
			continue
		}
		result = append(result, current)
		current = next
	}
	return append(result, current)
}

func shouldMerge(current, next models.TextBlock, widthTolerance, xTolerance, yTolerance float32) bool {
	similarWidth := next.Width < current.Width || abs(current.Width-next.Width) < widthTolerance
	closeX := abs(current.X-next.X) < xTolerance
	adjacentY := next.Y-(current.Y+current.Height) < yTolerance
	return similarWidth && closeX && adjacentY
}

// union anchors y to current's top on purpose; the sweep runs top to bottom.
func union(current, next models.TextBlock) models.TextBlock {
	x := min(current.X, next.X)
	y := current.Y
	return models.TextBlock{
		Text:        current.Text + " " + next.Text,
		Translation: current.Translation + " " + next.Translation,
		X:           x,
		Y:           y,
		Width:       max(current.X+current.Width, next.X+next.Width) - x,
		Height:      max(current.Y+current.Height, next.Y+next.Height) - y,
		SymWidth:    current.SymWidth,
		SymHeight:   current.SymHeight,
		Angle:       current.Angle,
	}
}

// Overlap merges blocks whose boxes intersect and share orientation, without
// assuming reading order. Each block is merged into the last accumulated block
// it overlaps. The input slice is not modified.
//
// The merged width and height are measured from the accumulated block's
// origin, not from the union's origin, so the result depends on argument order.
func Overlap(blocks []models.TextBlock) []models.TextBlock {
	result := make([]models.TextBlock, 0, len(blocks))
	for _, current := range blocks {
		idx := -1
		for i := len(result) - 1; i >= 0; i-- {
			if overlaps(current, result[i]) {
				idx = i
				break
			}
		}
		if idx == -1 {
			result = append(result, current)
			continue
		}
		result[idx] = overlapUnion(result[idx], current)
	}
	return result
}

func overlaps(r1, r2 models.TextBlock) bool {
	return abs(r1.Angle-r2.Angle) < 10 &&
		r1.X < r2.X+r2.Width &&
		r1.X+r1.Width > r2.X &&
		r1.Y < r2.Y+r2.Height &&
		r1.Y+r1.Height > r2.Y
}

func overlapUnion(r1, r2 models.TextBlock) models.TextBlock {
	bottom := max(r1.Y+r1.Height, r2.Y+r2.Height)
	right := max(r1.X+r1.Width, r2.X+r2.Width)
	return models.TextBlock{
		Text:        r1.Text + "\n" + r2.Text,
		Translation: r1.Translation + "\n" + r2.Translation,
		X:           min(r1.X, r2.X),
		Y:           min(r1.Y, r2.Y),
		Width:       right - r1.X,
		Height:      bottom - r1.Y,
		SymWidth:    min(r1.SymWidth, r2.SymWidth),
		SymHeight:   min(r1.SymHeight, r2.SymHeight),
		Angle:       (r1.Angle + r2.Angle) / 2,
	}
}

func abs(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

// Policy selects the merge algorithm used for a page.
type Policy string

const (
	PolicySweep   Policy = "sweep"
	PolicyOverlap Policy = "overlap"
)

// Apply runs the merge selected by policy. Unknown policies use the sweep.
func Apply(policy Policy, blocks []models.TextBlock, tol Tolerances) []models.TextBlock {
	if policy == PolicyOverlap {
		return Overlap(blocks)
	}
	return Blocks(blocks, tol.Width, tol.X, tol.Y)
}
