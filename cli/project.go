package cli

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/urfave/cli/v2"

	"go.viam.com/geocal/rimage/transform"
)

// ProjectAction is the corresponding Action for 'project'.
func ProjectAction(c *cli.Context) error {
	camera, err := transform.ReadCameraFile(c.String(projectFlagCamera))
	if err != nil {
		return err
	}
	args, err := parseFloatArgs(c, 3)
	if err != nil {
		return err
	}

	if c.Bool(projectFlagInverse) {
		w, err := camera.ImageToWorld(r2.Point{X: args[0], Y: args[1]}, args[2])
		if err != nil {
			return err
		}
		printf(c.App.Writer, "%.6f %.6f %.6f", w.X, w.Y, w.Z)
		return nil
	}

	p, err := camera.WorldToImage(r3.Vector{X: args[0], Y: args[1], Z: args[2]})
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%.6f %.6f", p.X, p.Y)
	return nil
}
