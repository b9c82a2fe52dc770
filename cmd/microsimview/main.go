package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"microsimview/internal/models"
	"microsimview/pkg/client"
	"microsimview/pkg/config"
	"microsimview/pkg/logging"
	"microsimview/pkg/transform"
	"microsimview/pkg/viewer"
	"microsimview/pkg/visualization"
	"microsimview/pkg/volume"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "microsim.yaml", "Configuration file (YAML, or TOML with a .toml extension)")
	simPath := flag.String("sim", "", "JSON simulation document (empty uses the backend's test data)")
	serverURL := flag.String("server", "", "Backend URL (overrides client.serverURL)")
	lazy := flag.Bool("lazy", false, "Fetch slices on demand instead of downloading the whole volume")
	outputDir := flag.String("out", "frames", "Directory to write composited PNG frames")
	zIndex := flag.Int("z", -1, "Z slice to render (-1 renders every slice)")
	mode := flag.String("mode", "", "Contrast mode: global or plane (overrides viewer.contrastMode)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Logging.SetLogger(); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Shutdown()

	if *serverURL != "" {
		cfg.Client.ServerURL = *serverURL
	}
	if *lazy {
		cfg.Client.Lazy = true
	}
	if *mode != "" {
		cfg.Viewer.ContrastMode = *mode
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid -mode: %v", err)
		}
	}

	c := client.New(cfg.Client.ServerURL, client.Options{
		Timeout:      cfg.Timeout(),
		Lazy:         cfg.Client.Lazy,
		Filler:       volume.FillerByName(cfg.Client.Filler),
		CacheEntries: cfg.Client.PlaneCacheEntries,
		Snappy:       cfg.Client.Snappy,
	})

	fmt.Println("================================")
	fmt.Println("MICROSCOPY SIMULATION VIEWER")
	fmt.Printf("Backend: %s (lazy: %v)\n", c.BaseURL(), cfg.Client.Lazy)
	fmt.Println("================================")

	ctx := context.Background()
	startTime := time.Now()
	result, err := fetchResult(ctx, c, *simPath)
	if errors.Is(err, client.ErrConfig) {
		log.Fatalf("Simulation parameters rejected: %v", err)
	}
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	fmt.Printf("Result %s: shape %v, backend time %.2f seconds\n",
		result.ID, result.Shape.Slice(), result.Elapsed.Seconds())
	for i, s := range result.Stats {
		fmt.Printf("- channel %d: min %.4g, max %.4g, p5 %.4g, p95 %.4g\n", i, s.Min, s.Max, s.P5, s.P95)
	}

	src, err := c.Source(result)
	if err != nil {
		log.Fatalf("Failed to open result: %v", err)
	}

	display := &visualization.PNGDisplay{Dir: *outputDir, MinSize: cfg.Viewer.MinDisplaySize}
	v := viewer.New(viewer.Options{
		Display: display,
		Mode:    transform.ParseMode(cfg.Viewer.ContrastMode),
	})
	if err := v.LoadResult(result, src); err != nil {
		log.Fatalf("Failed to load result: %v", err)
	}

	if *zIndex >= 0 {
		z := v.SetZ(*zIndex)
		if z != *zIndex {
			fmt.Printf("Z %d is out of range, showing slice %d\n", *zIndex, z)
		}
		if _, ok := v.LastFrame(); !ok {
			log.Fatalf("No frame was rendered")
		}
		fmt.Printf("\nFrame written to: %s\n", display.Last)
	} else {
		// Slice 0 was shown on load; write the full stack with the same settings
		err := visualization.SaveSliceSequence(ctx, src, result.Stats, v.View(),
			transform.ParseMode(cfg.Viewer.ContrastMode), *outputDir, cfg.Viewer.MinDisplaySize)
		if err != nil {
			log.Fatalf("Failed to write slices: %v", err)
		}
		fmt.Printf("\nFrames written to: %s\n", *outputDir)
	}
	fmt.Printf("Total time: %.2f seconds\n", time.Since(startTime).Seconds())
}

// fetchResult runs the simulation in path, or falls back to the backend's test data
func fetchResult(ctx context.Context, c *client.Client, path string) (*models.SimulationResult, error) {
	if path == "" {
		return c.TestData(ctx)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	// Accept both a bare document and one wrapped in {"simulation": ...}
	if inner, ok := doc["simulation"].(map[string]interface{}); ok {
		doc = inner
	}
	return c.Simulate(ctx, doc)
}
