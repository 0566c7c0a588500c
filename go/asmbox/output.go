// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package asmbox

import (
	"fmt"
	"strconv"
)

// Output is a value written by a program to its output channel. OUT produces
// numeric outputs, OUTC produces characters.
type Output struct {
	Value Word `json:"value"`
	Char  bool `json:"char,omitempty"`
}

func (o Output) String() string {
	if o.Char {
		return string(rune(o.Value))
	}
	return strconv.FormatInt(int64(o.Value), 10)
}

// GoString is used by %#v, e.g. in test failure messages.
func (o Output) GoString() string {
	if o.Char {
		return fmt.Sprintf("char(%q)", rune(o.Value))
	}
	return fmt.Sprintf("number(%d)", o.Value)
}

const (
	ScreenWidth  = 256
	ScreenHeight = 256
	// FrameSize is the number of bytes of a frame, 4 bytes (RGBA) per pixel.
	FrameSize = ScreenWidth * ScreenHeight * 4
)

// Frame is an RGBA pixel buffer of ScreenWidth x ScreenHeight pixels, stored
// row by row.
type Frame []byte

// NewFrame creates a frame with all pixels set to transparent black.
func NewFrame() Frame {
	return make(Frame, FrameSize)
}

// InBounds reports whether the given coordinates name a pixel on the screen.
func InBounds(x, y Word) bool {
	return 0 <= x && x < ScreenWidth && 0 <= y && y < ScreenHeight
}

func pixelOffset(x, y int) int {
	return (y*ScreenWidth + x) * 4
}

// SetPixel stores the 24-bit RGB color at the given position with full
// opacity. Positions outside of the screen are ignored.
func (f Frame) SetPixel(x, y Word, color Word) {
	if !InBounds(x, y) || len(f) < FrameSize {
		return
	}
	pos := pixelOffset(int(x), int(y))
	f[pos+0] = byte(color >> 16)
	f[pos+1] = byte(color >> 8)
	f[pos+2] = byte(color)
	f[pos+3] = 255
}

// Pixel returns the RGBA components of the given pixel. Pixels outside of
// the screen are reported as transparent black.
func (f Frame) Pixel(x, y int) (r, g, b, a byte) {
	if !InBounds(Word(x), Word(y)) || len(f) < FrameSize {
		return 0, 0, 0, 0
	}
	pos := pixelOffset(x, y)
	return f[pos], f[pos+1], f[pos+2], f[pos+3]
}

// Clone creates an independent copy of the frame.
func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	res := make(Frame, len(f))
	copy(res, f)
	return res
}
