package models

// TextRegion is a raw OCR detection. Coordinates are in source image pixels.
type TextRegion struct {
	Text      string
	X         float32
	Y         float32
	Width     float32
	Height    float32
	SymWidth  float32 // width of a single glyph, used as a padding unit
	SymHeight float32
	Angle     float32 // degrees, 0 = horizontal
}

// TextBlock is a merged region plus its translation. It is the persisted unit.
type TextBlock struct {
	Text        string  `json:"text" yaml:"text"`
	Translation string  `json:"translation" yaml:"translation"`
	Width       float32 `json:"width" yaml:"width"`
	Height      float32 `json:"height" yaml:"height"`
	X           float32 `json:"x" yaml:"x"`
	Y           float32 `json:"y" yaml:"y"`
	SymWidth    float32 `json:"symWidth" yaml:"symWidth"`
	SymHeight   float32 `json:"symHeight" yaml:"symHeight"`
	Angle       float32 `json:"angle" yaml:"angle"`
}

// BlockFromRegion converts a detection into an untranslated block.
func BlockFromRegion(r TextRegion) TextBlock {
	return TextBlock{
		Text:      r.Text,
		Width:     r.Width,
		Height:    r.Height,
		X:         r.X,
		Y:         r.Y,
		SymWidth:  r.SymWidth,
		SymHeight: r.SymHeight,
		Angle:     r.Angle,
	}
}

// PageResult holds the blocks of one page and the original image size, which
// consumers need to rescale geometry to their render size.
type PageResult struct {
	Blocks    []TextBlock `json:"blocks" yaml:"blocks"`
	ImgWidth  float32     `json:"imgWidth" yaml:"imgWidth"`
	ImgHeight float32     `json:"imgHeight" yaml:"imgHeight"`
}

// DocumentResult maps a page filename to its result. One per chapter file.
type DocumentResult map[string]*PageResult

// Texts returns the block texts of every page, keyed like the result.
func (d DocumentResult) Texts() map[string][]string {
	out := make(map[string][]string, len(d))
	for key, page := range d {
		texts := make([]string, 0, len(page.Blocks))
		for _, b := range page.Blocks {
			texts = append(texts, b.Text)
		}
		out[key] = texts
	}
	return out
}

// BlockCount returns the number of blocks across all pages.
func (d DocumentResult) BlockCount() int {
	n := 0
	for _, page := range d {
		n += len(page.Blocks)
	}
	return n
}
