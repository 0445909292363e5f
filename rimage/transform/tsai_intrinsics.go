package transform

import (
	"fmt"
	"math"
)

// TsaiIntrinsics are the fixed properties of one physical camera and frame grabber.
type TsaiIntrinsics struct {
	// Ncx is the number of sensor elements in the camera's x direction.
	Ncx float64 `json:"ncx"`
	// Nfx is the number of pixels in a frame grabber line.
	Nfx float64 `json:"nfx"`
	// Dx and Dy are the center to center distances between sensor elements, in mm.
	Dx float64 `json:"dx"`
	Dy float64 `json:"dy"`
	// Dpx and Dpy are the effective pixel sizes seen by the frame grabber, in mm.
	Dpx float64 `json:"dpx"`
	Dpy float64 `json:"dpy"`
	// Cx and Cy are the center of radial distortion, in pixels.
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
	// Sx scales horizontal pixels to correct for frame grabber timing.
	Sx float64 `json:"sx"`
}

// NewTsaiIntrinsics fills in the effective pixel sizes from the sensor geometry.
func NewTsaiIntrinsics(ncx, nfx, dx, dy, cx, cy, sx float64) TsaiIntrinsics {
	in := TsaiIntrinsics{Ncx: ncx, Nfx: nfx, Dx: dx, Dy: dy, Cx: cx, Cy: cy, Sx: sx}
	if nfx != 0 {
		in.Dpx = dx * ncx / nfx
	}
	in.Dpy = dy
	return in
}

// CheckValid checks if the fields for TsaiIntrinsics have valid inputs.
func (in *TsaiIntrinsics) CheckValid() error {
	if in == nil {
		return NewInvalidIntrinsicsError("Intrinsics do not exist")
	}
	positive := []struct {
		name string
		v    float64
	}{
		{"Ncx", in.Ncx}, {"Nfx", in.Nfx}, {"dx", in.Dx}, {"dy", in.Dy},
		{"dpx", in.Dpx}, {"dpy", in.Dpy}, {"sx", in.Sx},
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return NewInvalidIntrinsicsError(fmt.Sprintf("Invalid %s = %#v", p.name, p.v))
		}
	}
	if math.IsNaN(in.Cx) || math.IsInf(in.Cx, 0) || math.IsNaN(in.Cy) || math.IsInf(in.Cy, 0) {
		return NewInvalidIntrinsicsError(fmt.Sprintf("Invalid distortion center (%#v, %#v)", in.Cx, in.Cy))
	}
	return nil
}
