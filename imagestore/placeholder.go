package imagestore

import (
	"bytes"
	"fmt"

	"github.com/fogleman/gg"
)

// placeholder draws the neutral default asset: a grey frame with a sun and
// two hills.
func placeholder(w, h int) ([]byte, error) {
	dc := gg.NewContext(w, h)
	fw, fh := float64(w), float64(h)

	dc.SetRGB255(236, 236, 236)
	dc.Clear()

	dc.SetRGB255(196, 196, 196)
	dc.DrawCircle(fw*0.68, fh*0.32, min(fw, fh)*0.09)
	dc.Fill()

	dc.SetRGB255(176, 176, 176)
	dc.MoveTo(fw*0.12, fh*0.80)
	dc.LineTo(fw*0.40, fh*0.45)
	dc.LineTo(fw*0.62, fh*0.80)
	dc.ClosePath()
	dc.Fill()

	dc.SetRGB255(160, 160, 160)
	dc.MoveTo(fw*0.45, fh*0.80)
	dc.LineTo(fw*0.66, fh*0.56)
	dc.LineTo(fw*0.88, fh*0.80)
	dc.ClosePath()
	dc.Fill()

	dc.SetRGB255(200, 200, 200)
	dc.SetLineWidth(max(2, min(fw, fh)*0.02))
	dc.DrawRectangle(fw*0.08, fh*0.12, fw*0.84, fh*0.76)
	dc.Stroke()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("imagestore: encode default: %w", err)
	}
	return buf.Bytes(), nil
}
