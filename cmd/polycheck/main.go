package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/geopoly/core"
	"github.com/signalsfoundry/geopoly/geometry"
	"github.com/signalsfoundry/geopoly/internal/config"
	"github.com/signalsfoundry/geopoly/internal/logging"
	"github.com/signalsfoundry/geopoly/kb"
	"github.com/signalsfoundry/geopoly/model"
)

type options struct {
	RegionsPath string
	PointsPath  string
	Format      string
	Workers     int
	BatchSize   int
	Earth       geometry.Ellipsoid
	Summary     bool
}

func main() {
	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	regionsPath := flag.String("regions", cfg.RegionsPath, "region definition file (JSON, YAML or GeoJSON)")
	pointsPath := flag.String("points", "", "file holding a list of {lat, lon} points, JSON or YAML; - reads stdin")
	format := flag.String("format", "", "region file format: json, yaml or geojson (default: from extension)")
	workers := flag.Int("workers", cfg.Workers, "worker pool size for batch containment")
	batchSize := flag.Int("batch", cfg.BatchSize, "points per batch containment task")
	earthName := flag.String("earth", cfg.Earth.Name, "earth model: wgs84, grs80 or sphere")
	summary := flag.Bool("summary", false, "print only per-region counts")
	flag.Parse()

	earth, err := geometry.EllipsoidByName(*earthName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	if *regionsPath == "" || *pointsPath == "" {
		fmt.Fprintln(os.Stderr, "both -regions and -points are required")
		flag.Usage()
		os.Exit(2)
	}

	opts := options{
		RegionsPath: *regionsPath,
		PointsPath:  *pointsPath,
		Format:      *format,
		Workers:     *workers,
		BatchSize:   *batchSize,
		Earth:       earth,
		Summary:     *summary,
	}
	if err := run(ctx, opts, os.Stdin, os.Stdout, log); err != nil {
		fmt.Fprintf(os.Stderr, "polycheck: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdin io.Reader, out io.Writer, log logging.Logger) error {
	store, err := loadStore(opts)
	if err != nil {
		return err
	}

	coords, err := readPoints(opts.PointsPath, stdin)
	if err != nil {
		return err
	}
	points := lo.Map(coords, func(c model.LatLon, _ int) r3.Vector {
		return opts.Earth.VectorFromLatLonDegrees(c.Lat, c.Lon)
	})

	start := time.Now()
	results, err := store.Classify(ctx, points,
		core.WithWorkers(opts.Workers),
		core.WithBatchSize(opts.BatchSize),
		core.WithLogger(log),
	)
	if err != nil {
		return err
	}
	log.Info(ctx, "classified points",
		logging.Int("points", len(points)),
		logging.Int("regions", store.Len()),
		logging.Duration("elapsed", time.Since(start)),
	)

	regions := store.List()
	if !opts.Summary {
		for i, c := range coords {
			ids := lo.FilterMap(regions, func(r *core.Region, _ int) (string, bool) {
				return r.ID, results[r.ID][i]
			})
			inside := "-"
			if len(ids) > 0 {
				inside = strings.Join(ids, ",")
			}
			fmt.Fprintf(out, "%10.5f %11.5f  %s\n", c.Lat, c.Lon, inside)
		}
	}
	for _, r := range regions {
		n := lo.Count(results[r.ID], true)
		fmt.Fprintf(out, "region %-20s %d/%d inside\n", r.ID, n, len(points))
	}
	return nil
}

func loadStore(opts options) (*kb.RegionStore, error) {
	format := core.FormatFromPath(opts.RegionsPath)
	if opts.Format != "" {
		f, err := core.ParseFormat(opts.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}

	f, err := os.Open(opts.RegionsPath)
	if err != nil {
		return nil, fmt.Errorf("open regions %q: %w", opts.RegionsPath, err)
	}
	defer f.Close()

	regions, err := core.LoadRegions(f, format, opts.Earth)
	if err != nil {
		return nil, err
	}
	store := kb.NewRegionStore(nil)
	for _, r := range regions {
		if err := store.Add(r); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// readPoints decodes a list of points. YAML accepts JSON input as well.
func readPoints(path string, stdin io.Reader) ([]model.LatLon, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read points: %w", err)
	}

	var coords []model.LatLon
	if err := yaml.Unmarshal(data, &coords); err != nil {
		return nil, fmt.Errorf("decode points %q: %w", path, err)
	}
	for i, c := range coords {
		if c.Lat < -90 || c.Lat > 90 {
			return nil, fmt.Errorf("point %d: latitude %v out of range", i, c.Lat)
		}
	}
	return coords, nil
}
