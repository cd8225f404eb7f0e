package dataset

import "github.com/lehigh-university-libraries/panelator/internal/models"

// BlockRecord is one translated block, flattened with the chapter and page
// it belongs to. One row per block.
type BlockRecord struct {
	// Location of the result file under the translations root
	Source   string `json:"source" parquet:"source"`
	Document string `json:"document" parquet:"document"`
	Chapter  string `json:"chapter" parquet:"chapter"`
	Page     string `json:"page" parquet:"page"`

	BlockIndex  int    `json:"block_index" parquet:"block_index"`
	Text        string `json:"text" parquet:"text"`
	Translation string `json:"translation" parquet:"translation"`

	// Geometry in source image pixels
	X         float32 `json:"x" parquet:"x"`
	Y         float32 `json:"y" parquet:"y"`
	Width     float32 `json:"width" parquet:"width"`
	Height    float32 `json:"height" parquet:"height"`
	SymWidth  float32 `json:"sym_width" parquet:"sym_width"`
	SymHeight float32 `json:"sym_height" parquet:"sym_height"`
	Angle     float32 `json:"angle" parquet:"angle"`
	ImgWidth  float32 `json:"img_width" parquet:"img_width"`
	ImgHeight float32 `json:"img_height" parquet:"img_height"`
}

// Block returns the block the record was flattened from.
func (r *BlockRecord) Block() models.TextBlock {
	return models.TextBlock{
		Text:        r.Text,
		Translation: r.Translation,
		Width:       r.Width,
		Height:      r.Height,
		X:           r.X,
		Y:           r.Y,
		SymWidth:    r.SymWidth,
		SymHeight:   r.SymHeight,
		Angle:       r.Angle,
	}
}
