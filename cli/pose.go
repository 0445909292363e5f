package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/geocal/components/movementsensor/replay"
	"go.viam.com/geocal/config"
)

// PoseAction is the corresponding Action for 'pose'.
func PoseAction(c *cli.Context) (err error) {
	if c.Args().Len() == 0 {
		return errors.New("at least one time is required")
	}
	times := make([]int64, c.Args().Len())
	for i, arg := range c.Args().Slice() {
		t, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "time %q", arg)
		}
		times[i] = t
	}

	logger, closeLogger := newLogger(c, "pose")
	defer closeLogger()

	reader, err := replay.NewReader(logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, reader.Close(c.Context))
	}()
	if err := reader.Init(c.Context, c.String(poseFlagConfig)); err != nil {
		return err
	}
	frame, err := reader.Frame()
	if err != nil {
		return err
	}

	withGeo := c.Bool(poseFlagGeo)
	header := table.Row{"Time", "X", "Y", "Z", "Roll", "Pitch", "Yaw", "Global X", "Global Y", "Bounds"}
	if withGeo {
		header = append(header, "Lat", "Lng")
	}
	t := table.NewWriter()
	t.AppendHeader(header)
	for _, ts := range times {
		if err := reader.GrabData(ts); err != nil {
			return err
		}
		rec, err := reader.CurrentData()
		if err != nil {
			return err
		}
		gp, err := reader.VehicleToGlobal(r3.Vector{})
		if err != nil {
			return err
		}
		bounds := "in"
		if gp.OutOfBounds {
			bounds = "out"
		}
		row := table.Row{
			rec.Time,
			fmt.Sprintf("%.3f", rec.X), fmt.Sprintf("%.3f", rec.Y), fmt.Sprintf("%.3f", rec.Z),
			fmt.Sprintf("%.4f", rec.Roll), fmt.Sprintf("%.4f", rec.Pitch), fmt.Sprintf("%.4f", rec.Yaw),
			fmt.Sprintf("%.3f", gp.Point.X), fmt.Sprintf("%.3f", gp.Point.Y),
			bounds,
		}
		if withGeo {
			p, err := frame.GlobalToGeo(gp.Point)
			if err != nil {
				return err
			}
			row = append(row, fmt.Sprintf("%.7f", p.Lat()), fmt.Sprintf("%.7f", p.Lng()))
		}
		t.AppendRow(row)
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// SchemaAction is the corresponding Action for 'schema'.
func SchemaAction(c *cli.Context) error {
	out, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", out)
	return nil
}
