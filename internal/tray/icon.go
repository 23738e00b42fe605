package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

// Tray icons are generated at startup as solid 16x16 dots, one color
// per status. Platform trays accept PNG data directly.
var statusColors = map[Status]color.RGBA{
	StatusIdle:    {R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff},
	StatusActive:  {R: 0x4c, G: 0xaf, B: 0x50, A: 0xff},
	StatusWorking: {R: 0x21, G: 0x96, B: 0xf3, A: 0xff},
	StatusError:   {R: 0xf4, G: 0x43, B: 0x36, A: 0xff},
	StatusOffline: {R: 0x61, G: 0x61, B: 0x61, A: 0xff},
}

var (
	iconOnce  sync.Once
	iconBytes map[Status][]byte
)

func iconFor(s Status) []byte {
	iconOnce.Do(buildIcons)
	if b, ok := iconBytes[s]; ok {
		return b
	}
	return iconBytes[StatusIdle]
}

func buildIcons() {
	iconBytes = make(map[Status][]byte, len(statusColors))
	for s, c := range statusColors {
		iconBytes[s] = renderDot(c)
	}
}

func renderDot(c color.RGBA) []byte {
	const size = 16
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cx, cy, r := size/2, size/2, size/2-2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
