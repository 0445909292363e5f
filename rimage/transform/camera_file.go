package transform

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/geocal/spatialmath"
	"go.viam.com/geocal/utils"
)

// cameraFileFields is the order values are stored in a camera file.
var cameraFileFields = []string{
	"Ncx", "Nfx", "dx", "dy", "dpx", "dpy", "Cx", "Cy", "sx",
	"f", "kappa1", "p1", "p2",
	"Tx", "Ty", "Tz", "Rx", "Ry", "Rz",
	"r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9",
}

// ParseCameraFile reads the intrinsics and calibration of a camera. The file is a whitespace
// separated list of numbers in the order Ncx Nfx dx dy dpx dpy Cx Cy sx f kappa1 p1 p2
// Tx Ty Tz Rx Ry Rz r1 ... r9. Everything after a '#' on a line is ignored.
func ParseCameraFile(r io.Reader) (*TsaiCameraModel, error) {
	values := make([]float64, 0, len(cameraFileFields))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		for _, tok := range strings.Fields(line) {
			if len(values) == len(cameraFileFields) {
				return nil, errors.Errorf("camera file has more than %d values", len(cameraFileFields))
			}
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "camera file field %s", cameraFileFields[len(values)])
			}
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(values) != len(cameraFileFields) {
		return nil, errors.Errorf("camera file has %d values, expected %d", len(values), len(cameraFileFields))
	}

	intrinsics := TsaiIntrinsics{
		Ncx: values[0], Nfx: values[1], Dx: values[2], Dy: values[3], Dpx: values[4], Dpy: values[5],
		Cx: values[6], Cy: values[7], Sx: values[8],
	}
	rm, err := spatialmath.NewRotationMatrix(values[19:28])
	if err != nil {
		return nil, err
	}
	params := CalibrationParameters{
		F:           values[9],
		Kappa1:      values[10],
		P1:          values[11],
		P2:          values[12],
		Translation: r3.Vector{X: values[13], Y: values[14], Z: values[15]},
		Rotation:    spatialmath.EulerAngles{Roll: values[16], Pitch: values[17], Yaw: values[18]},
		R:           rm,
	}
	return NewTsaiCameraModel(intrinsics, params)
}

// ReadCameraFile reads a camera file from disk.
func ReadCameraFile(path string) (*TsaiCameraModel, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening camera file")
	}
	defer goutils.UncheckedErrorFunc(f.Close)

	m, err := ParseCameraFile(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading camera file %q", path)
	}
	return m, nil
}

// FormatCameraFile writes the model in the layout ParseCameraFile reads. Values are written with
// the fewest digits that parse back to the identical float64.
func FormatCameraFile(w io.Writer, m *TsaiCameraModel) error {
	in, p := m.Intrinsics, m.Params
	r := p.R.Entries()
	values := []float64{
		in.Ncx, in.Nfx, in.Dx, in.Dy, in.Dpx, in.Dpy, in.Cx, in.Cy, in.Sx,
		p.F, p.Kappa1, p.P1, p.P2,
		p.Translation.X, p.Translation.Y, p.Translation.Z,
		p.Rotation.Roll, p.Rotation.Pitch, p.Rotation.Yaw,
	}
	values = append(values, r[:]...)

	bw := bufio.NewWriter(w)
	for i, v := range values {
		if _, err := bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
			return err
		}
		if _, err := bw.WriteString("\t# " + cameraFileFields[i] + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCameraFile atomically replaces the camera file at path: the model is written to a temporary
// file in the same directory which is then renamed over path.
func WriteCameraFile(path string, m *TsaiCameraModel) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "error creating camera file")
	}
	defer func() {
		if err != nil {
			utils.RemoveFileNoError(tmp.Name())
		}
	}()

	if err := FormatCameraFile(tmp, m); err != nil {
		return multierr.Combine(err, tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
