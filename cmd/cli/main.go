// Package main is the detectx operator CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"detectx-service/internal/capture"
	"detectx-service/internal/models"
	"detectx-service/internal/overlay"
	"detectx-service/internal/services"
)

const (
	flagBackendURL = "backend-url"
	flagTimeout    = "timeout"
	flagDebug      = "debug"
	flagDir        = "dir"
	flagOut        = "out"
	flagQuality    = "quality"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	var logger *zap.Logger

	return &cli.App{
		Name:      "detectx",
		Usage:     "talk to a Detect-X detection backend",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagBackendURL,
				Value:   "http://localhost:5000",
				EnvVars: []string{"BACKEND_URL"},
				Usage:   "base URL of the detection backend",
			},
			&cli.DurationFlag{
				Name:  flagTimeout,
				Value: 5 * time.Second,
				Usage: "per-request timeout",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				logger = l
			} else {
				logger = zap.NewNop()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "health",
				Usage: "check whether the backend is online",
				Action: func(c *cli.Context) error {
					return healthAction(c, logger)
				},
			},
			{
				Name:      "detect",
				Usage:     "detect objects in an image file",
				ArgsUsage: "<image>",
				Action: func(c *cli.Context) error {
					return detectAction(c, logger)
				},
			},
			{
				Name:      "export",
				Usage:     "detect objects in an image file and write a detection-results JSON file",
				ArgsUsage: "<image>",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:    flagDir,
						Value:   ".",
						EnvVars: []string{"EXPORT_DIR"},
						Usage:   "output directory",
					},
				},
				Action: func(c *cli.Context) error {
					return exportAction(c, logger)
				},
			},
			{
				Name:      "annotate",
				Usage:     "detect objects in an image file and write it with bounding boxes drawn",
				ArgsUsage: "<image>",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagOut,
						Required: true,
						Usage:    "output JPEG `FILE`",
					},
					&cli.IntFlag{
						Name:  flagQuality,
						Value: 90,
						Usage: "JPEG quality",
					},
				},
				Action: func(c *cli.Context) error {
					return annotateAction(c, logger)
				},
			},
			{
				Name:  "cameras",
				Usage: "list local capture devices",
				Action: func(c *cli.Context) error {
					cameras, err := capture.ListCameras()
					if err != nil {
						return err
					}
					for _, cam := range cameras {
						fmt.Fprintln(c.App.Writer, cam)
					}
					return nil
				},
			},
		},
	}
}

func newClient(c *cli.Context, logger *zap.Logger) *services.DetectionClient {
	return services.NewDetectionClient(strings.TrimRight(c.String(flagBackendURL), "/"), 5, logger)
}

func healthAction(c *cli.Context, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(c.Context, c.Duration(flagTimeout))
	defer cancel()

	status := newClient(c, logger).Health(ctx)
	fmt.Fprintf(c.App.Writer, "backend %s: %s\n", c.String(flagBackendURL), status)
	if status != models.BackendOnline {
		return cli.Exit("", 1)
	}
	return nil
}

// detectFile reads an image, submits it and returns its bytes and detections
func detectFile(c *cli.Context, logger *zap.Logger) ([]byte, string, []models.Detection, error) {
	if c.NArg() != 1 {
		return nil, "", nil, fmt.Errorf("expected exactly one image path")
	}

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to read image: %w", err)
	}
	if _, err := services.DecodeImage(data); err != nil {
		return nil, "", nil, err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration(flagTimeout))
	defer cancel()

	dataURI := services.EncodeDataURI(data)
	detections, err := newClient(c, logger).Detect(ctx, dataURI)
	if err != nil {
		return nil, "", nil, err
	}
	return data, dataURI, detections, nil
}

func detectAction(c *cli.Context, logger *zap.Logger) error {
	_, _, detections, err := detectFile(c, logger)
	if err != nil {
		return err
	}

	if len(detections) == 0 {
		fmt.Fprintln(c.App.Writer, "no objects detected")
		return nil
	}
	for _, d := range detections {
		fmt.Fprintf(c.App.Writer, "%s\t[%g %g %g %g]\n", overlay.Caption(d), d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3])
	}
	summary := services.Summarize(detections)
	fmt.Fprintf(c.App.Writer, "total %d: fire extinguishers %d, oxygen tanks %d, toolboxes %d\n",
		summary.TotalObjects, summary.FireExtinguishers, summary.OxygenTanks, summary.Toolboxes)
	return nil
}

func exportAction(c *cli.Context, logger *zap.Logger) error {
	_, dataURI, detections, err := detectFile(c, logger)
	if err != nil {
		return err
	}

	now := time.Now()
	path, err := services.WriteExport(c.Path(flagDir), services.BuildExport(detections, &dataURI, now), now)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}

func annotateAction(c *cli.Context, logger *zap.Logger) error {
	data, _, detections, err := detectFile(c, logger)
	if err != nil {
		return err
	}

	img, err := services.DecodeImage(data)
	if err != nil {
		return err
	}
	renderer, err := overlay.NewRenderer()
	if err != nil {
		return err
	}
	annotated, err := renderer.Render(img, detections)
	if err != nil {
		return err
	}

	out, err := services.NewFrameEncoder(0, 0, c.Int(flagQuality)).EncodeJPEG(annotated)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Path(flagOut), out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.Path(flagOut), err)
	}
	fmt.Fprintf(c.App.Writer, "%d objects drawn to %s\n", len(detections), c.Path(flagOut))
	return nil
}
