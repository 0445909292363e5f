// Package cli contains the geocal command line: calibrating a camera, projecting points through
// a calibrated camera and replaying a position log.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	debugFlag   = "debug"
	logFileFlag = "log-file"

	calibrateFlagIntrinsics  = "intrinsics"
	calibrateFlagPoints      = "points"
	calibrateFlagOut         = "out"
	calibrateFlagMode        = "mode"
	calibrateFlagDecentering = "decentering"
	calibrateFlagRefine      = "refine"
	calibrateFlagHistogram   = "histogram"

	projectFlagCamera  = "camera"
	projectFlagInverse = "inverse"

	poseFlagConfig = "config"
	poseFlagGeo    = "geo"
)

var app = &cli.App{
	Name:            "geocal",
	Usage:           "calibrate cameras and replay vehicle poses",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  logFileFlag,
			Usage: "also write logs to `FILE`, rotating it as it grows",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "calibrate",
			Usage:     "fit a camera's extrinsics and distortion to world/image correspondences",
			UsageText: "geocal calibrate --intrinsics <camera file> --points <file> --out <camera file>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     calibrateFlagIntrinsics,
					Required: true,
					Usage:    "camera file whose intrinsics describe the camera being calibrated",
				},
				&cli.StringFlag{
					Name:     calibrateFlagPoints,
					Required: true,
					Usage:    "correspondences, one \"xw yw zw Xf Yf\" per line",
				},
				&cli.StringFlag{
					Name:  calibrateFlagOut,
					Usage: "write the calibrated camera to this file",
				},
				&cli.StringFlag{
					Name:  calibrateFlagMode,
					Value: "auto",
					Usage: "calibration mode: auto, coplanar or noncoplanar",
				},
				&cli.BoolFlag{
					Name:  calibrateFlagDecentering,
					Usage: "also fit the decentering distortion coefficients p1 and p2",
				},
				&cli.BoolFlag{
					Name:  calibrateFlagRefine,
					Usage: "start from the calibration in the intrinsics file instead of a linear estimate",
				},
				&cli.IntFlag{
					Name:  calibrateFlagHistogram,
					Usage: "print a histogram of reprojection errors with this many bins",
				},
			},
			Action: CalibrateAction,
		},
		{
			Name:      "project",
			Usage:     "project a world point to the image, or a pixel back onto a world plane",
			UsageText: "geocal project --camera <file> [--inverse] <x> <y> <z>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     projectFlagCamera,
					Required: true,
					Usage:    "calibrated camera file",
				},
				&cli.BoolFlag{
					Name:  projectFlagInverse,
					Usage: "treat the arguments as a distorted pixel and the z of the world plane",
				},
			},
			Action: ProjectAction,
		},
		{
			Name:      "pose",
			Usage:     "print the vehicle pose at each of the given times",
			UsageText: "geocal pose --config <file> <time>...",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     poseFlagConfig,
					Aliases:  []string{"c"},
					Required: true,
					Usage:    "pose reader configuration `FILE`",
				},
				&cli.BoolFlag{
					Name:  poseFlagGeo,
					Usage: "also print latitude and longitude; requires geo_origin in the config",
				},
			},
			Action: PoseAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the pose reader configuration",
			Action: SchemaAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
