package calibration

import (
	"fmt"
	"io"
	"math"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/geocal/rimage/transform"
)

// Report summarizes the reprojection error of a calibrated model: the pixel distance between
// where each world point projects and where it was observed.
type Report struct {
	Points    int
	MeanError float64
	MaxError  float64
	StdDev    float64
	RMS       float64
	// P95 is the 95th percentile of the errors.
	P95 float64
	// Errors holds each point's error in dataset order.
	Errors []float64
}

// NewReport projects every correspondence through model and measures its error.
func NewReport(model *transform.TsaiCameraModel, points []Correspondence) (Report, error) {
	if len(points) == 0 {
		return Report{}, errors.New("cannot report on zero points")
	}
	errs := make(stats.Float64Data, len(points))
	squares := make(stats.Float64Data, len(points))
	for i, p := range points {
		img, err := model.WorldToImage(p.World)
		if err != nil {
			return Report{}, errors.Wrapf(err, "point %d", i)
		}
		errs[i] = img.Sub(p.Image).Norm()
		squares[i] = errs[i] * errs[i]
	}

	mean, err := stats.Mean(errs)
	maxErr, err2 := stats.Max(errs)
	sd, err3 := stats.StandardDeviation(errs)
	meanSquare, err4 := stats.Mean(squares)
	p95, err5 := stats.Percentile(errs, 95)
	if combined := multierr.Combine(err, err2, err3, err4, err5); combined != nil {
		return Report{}, combined
	}
	return Report{
		Points:    len(points),
		MeanError: mean,
		MaxError:  maxErr,
		StdDev:    sd,
		RMS:       math.Sqrt(meanSquare),
		P95:       p95,
		Errors:    errs,
	}, nil
}

// String renders the report as a table, in pixels.
func (r Report) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Points", "Mean", "Max", "Std Dev", "RMS", "P95"})
	t.AppendRow(table.Row{
		r.Points,
		fmt.Sprintf("%.4f", r.MeanError),
		fmt.Sprintf("%.4f", r.MaxError),
		fmt.Sprintf("%.4f", r.StdDev),
		fmt.Sprintf("%.4f", r.RMS),
		fmt.Sprintf("%.4f", r.P95),
	})
	return t.Render()
}

// WriteHistogram draws the distribution of errors over bins buckets.
func (r Report) WriteHistogram(w io.Writer, bins int) error {
	if len(r.Errors) == 0 {
		return errors.New("report has no errors to plot")
	}
	return histogram.Fprint(w, histogram.Hist(bins, r.Errors), histogram.Linear(40))
}
