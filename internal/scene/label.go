package scene

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DrawTimeLabel writes "t=<seconds>s" into the bottom-left corner of img.
func DrawTimeLabel(img draw.Image, time float64, c color.Color) {
	face := basicfont.Face7x13
	b := img.Bounds()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(b.Min.X+6, b.Max.Y-6),
	}
	d.DrawString(fmt.Sprintf("t=%.2fs", time))
}
