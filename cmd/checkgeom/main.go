// Command checkgeom runs the console's geometry decoding and validation over
// a route polyline and/or a saved rescue-coverage response and reports
// pass/fail per phase. It exits non-zero when any phase fails.
//
// Usage:
//
//	go run ./cmd/checkgeom -polyline "D_xlsBs|x{L_XkM"
//	go run ./cmd/checkgeom -coverage testdata/coverage.json -lat 19.076 -lon 72.8777
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/disaster-console/internal/adapter/dataservice"
	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/geometry"
)

// phase tracks pass/fail for a check phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("checkgeom", flag.ContinueOnError)
	fs.SetOutput(stderr)
	polyline := fs.String("polyline", "", "encoded route polyline to decode")
	coveragePath := fs.String("coverage", "", "path to a saved rescue-coverage JSON response")
	lat := fs.Float64("lat", 0, "requested coverage origin latitude")
	lon := fs.Float64("lon", 0, "requested coverage origin longitude")
	verbose := fs.Bool("v", false, "log dropped vertices")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *polyline == "" && *coveragePath == "" {
		fs.Usage()
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	validator := geometry.NewValidator(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})), nil)

	fmt.Fprintln(stdout, "=== Geometry Check ===")
	fmt.Fprintln(stdout)

	var phases []*phase
	if *polyline != "" {
		phases = append(phases, checkPolyline(stdout, validator, *polyline)...)
	}
	if *coveragePath != "" {
		data, err := os.ReadFile(*coveragePath)
		if err != nil {
			fmt.Fprintf(stderr, "FATAL: read coverage file: %v\n", err)
			return 1
		}
		phases = append(phases, checkCoverage(stdout, validator, data, domain.Coordinates{Lat: *lat, Lon: *lon})...)
	}

	return report(stdout, phases)
}

func checkPolyline(out io.Writer, v *geometry.Validator, encoded string) []*phase {
	header := &phase{name: "Polyline header"}
	h, err := geometry.DecodeHeader(encoded)
	if err != nil {
		header.errorf("%v", err)
	} else {
		fmt.Fprintf(out, "Header: precision=%d third_dim=%d third_dim_precision=%d\n",
			h.Precision, h.ThirdDim, h.ThirdDimPrecision)
	}

	decode := &phase{name: "Polyline decode"}
	route := &phase{name: "Route validation"}
	points, err := geometry.Decode(encoded)
	if err != nil {
		decode.errorf("%v", err)
		route.errorf("skipped: polyline did not decode")
		return []*phase{header, decode, route}
	}
	fmt.Fprintf(out, "Decoded %d points\n", len(points))

	valid, ok := v.Route(points)
	if !ok {
		route.errorf("%d of %d points valid, need at least %d", len(valid), len(points), geometry.MinRoutePoints)
	} else if len(valid) != len(points) {
		route.errorf("%d out-of-range points dropped", len(points)-len(valid))
	}
	return []*phase{header, decode, route}
}

func checkCoverage(out io.Writer, v *geometry.Validator, data []byte, requested domain.Coordinates) []*phase {
	parse := &phase{name: "Coverage parse"}
	rings := &phase{name: "Coverage rings"}

	res, err := dataservice.ParseCoverage(bytes.TrimSpace(data), requested)
	if err != nil {
		parse.errorf("%v", err)
		rings.errorf("skipped: response did not parse")
		return []*phase{parse, rings}
	}
	if len(res.Isolines) == 0 {
		parse.errorf("response has no isolines")
	}
	fmt.Fprintf(out, "Origin: %.6f, %.6f; %d isolines\n", res.Origin.Lat, res.Origin.Lon, len(res.Isolines))

	overlay := v.Coverage(res)
	kept := make(map[int]geometry.CoverageRing, len(overlay.Rings))
	for _, r := range overlay.Rings {
		kept[r.Rank] = r
	}
	for _, iso := range res.Isolines {
		r, ok := kept[iso.Rank]
		if !ok {
			rings.errorf("isoline %d (%s) has fewer than %d valid vertices", iso.Rank, geometry.TierLabel(iso.Rank), geometry.MinRingVertices)
			continue
		}
		if len(r.Vertices) != len(iso.Polygon) {
			rings.errorf("isoline %d (%s): %d of %d vertices dropped", iso.Rank, r.Label, len(iso.Polygon)-len(r.Vertices), len(iso.Polygon))
		}
	}
	return []*phase{parse, rings}
}

func report(out io.Writer, phases []*phase) int {
	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll checks passed.")
		return 0
	}
	fmt.Fprintln(out, "\nGeometry check FAILED.")
	return 1
}
