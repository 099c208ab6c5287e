package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/marbleshade/internal/animation"
	"github.com/MeKo-Tech/marbleshade/internal/archive"
	"github.com/MeKo-Tech/marbleshade/internal/scene"
	"github.com/MeKo-Tech/marbleshade/internal/sink"
	"github.com/MeKo-Tech/marbleshade/internal/worker"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render animation frames",
	Long: `Render frames of the shaded, displaced sphere. Frame i is shaded at
start + i/fps seconds. Frames go to a PNG folder, a frame archive or S3.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().Int("frames", 90, "Number of frames to render")
	renderCmd.Flags().Float64("fps", 30, "Frames per second; converts frame indices to shading time")
	renderCmd.Flags().Float64("start", 0, "Shading time of the first frame in seconds")
	renderCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	renderCmd.Flags().Duration("progress", 2*time.Second, "Interval between progress log lines (0 disables)")
	renderCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some frames fail")
	renderCmd.Flags().Bool("force", false, "Re-render frames that already exist in the output folder")
	renderCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")

	renderCmd.Flags().String("format", "folder", "Output format: folder, archive or s3")
	renderCmd.Flags().String("output-file", "", "Archive file path for --format=archive (e.g., marble.frames)")
	renderCmd.Flags().String("s3-bucket", "", "Bucket for --format=s3")
	renderCmd.Flags().String("s3-prefix", "", "Object key prefix for --format=s3")
	renderCmd.Flags().String("s3-endpoint", "", "Custom S3 endpoint (path-style addressing)")
	renderCmd.Flags().String("s3-region", "", "S3 region (default us-east-1)")
	renderCmd.Flags().String("s3-access-key", "", "S3 access key (default credential chain when empty)")
	renderCmd.Flags().String("s3-secret-key", "", "S3 secret key")
	renderCmd.Flags().String("s3-acl", "", "Canned ACL for uploaded frames, e.g. public-read")
	renderCmd.Flags().String("cdn-url", "", "Public base URL used when logging uploaded frames")

	addFrameFlags(renderCmd, "render", 512)

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"render.frames", "frames"},
		{"render.fps", "fps"},
		{"render.start", "start"},
		{"render.workers", "workers"},
		{"render.progress", "progress"},
		{"render.allow_failures", "allow-failures"},
		{"render.force", "force"},
		{"render.png_compression", "png-compression"},
		{"render.format", "format"},
		{"render.output_file", "output-file"},
		{"render.s3.bucket", "s3-bucket"},
		{"render.s3.prefix", "s3-prefix"},
		{"render.s3.endpoint", "s3-endpoint"},
		{"render.s3.region", "s3-region"},
		{"render.s3.access_key", "s3-access-key"},
		{"render.s3.secret_key", "s3-secret-key"},
		{"render.s3.acl", "s3-acl"},
		{"render.s3.cdn_url", "cdn-url"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, renderCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	frames := viper.GetInt("render.frames")
	fps := viper.GetFloat64("render.fps")
	start := viper.GetFloat64("render.start")
	workers := viper.GetInt("render.workers")
	progressInterval := viper.GetDuration("render.progress")
	allowFailures := viper.GetBool("render.allow_failures")
	force := viper.GetBool("render.force")
	pngCompression := viper.GetString("render.png_compression")
	format := viper.GetString("render.format")
	outputFile := viper.GetString("render.output_file")
	outputDir := viper.GetString("output-dir")

	if logger == nil {
		initLogging()
	}

	if frames <= 0 {
		return fmt.Errorf("--frames must be positive, got %d", frames)
	}
	if fps <= 0 {
		return fmt.Errorf("--fps must be positive, got %g", fps)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	switch format {
	case "folder", "s3":
	case "archive":
		if outputFile == "" {
			outputFile = filepath.Join(outputDir, "marble.frames")
		}
	default:
		return fmt.Errorf("invalid format %q: must be 'folder', 'archive' or 's3'", format)
	}

	engine, err := buildEngine()
	if err != nil {
		return err
	}
	opts := frameOptions("render")
	renderer, err := scene.NewRenderer(engine, opts, logger)
	if err != nil {
		return fmt.Errorf("failed to init renderer: %w", err)
	}

	var frameWriter animation.FrameWriter
	var archiveWriter *archive.Writer
	switch format {
	case "archive":
		if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
			return fmt.Errorf("failed to create archive dir: %w", err)
		}
		archiveWriter, err = archive.New(outputFile, archive.Metadata{
			Name:        "MarbleShade",
			Format:      "png",
			Description: "Animated procedural marble sphere",
			Version:     "1.0",
			Ramp:        engine.Ramp().String(),
			Width:       opts.Width,
			Height:      opts.Height,
			FrameCount:  frames,
			FPS:         fps,
			StartTime:   start,
		})
		if err != nil {
			return fmt.Errorf("failed to create archive writer: %w", err)
		}
		defer archiveWriter.Close()
		frameWriter = archiveWriter
		logger.Info("Archive writer created", "path", outputFile)
	case "s3":
		s3Writer, err := sink.NewS3Writer(sink.S3Config{
			Bucket:    viper.GetString("render.s3.bucket"),
			Prefix:    viper.GetString("render.s3.prefix"),
			Endpoint:  viper.GetString("render.s3.endpoint"),
			Region:    viper.GetString("render.s3.region"),
			AccessKey: viper.GetString("render.s3.access_key"),
			SecretKey: viper.GetString("render.s3.secret_key"),
			ACL:       viper.GetString("render.s3.acl"),
			CDNURL:    viper.GetString("render.s3.cdn_url"),
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create s3 writer: %w", err)
		}
		frameWriter = s3Writer
	}

	gen, err := animation.NewGenerator(renderer, outputDir, logger, animation.GeneratorOptions{
		Writer:         frameWriter,
		PNGCompression: pngCompression,
		FPS:            fps,
		StartTime:      start,
	})
	if err != nil {
		return fmt.Errorf("failed to init generator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	tasks := gen.Tasks(frames, force)

	logger.Info("Starting frame rendering",
		"frames", frames,
		"fps", fps,
		"start", start,
		"size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"supersample", opts.Supersample,
		"workers", workers,
		"format", format,
		"output_dir", outputDir,
	)

	progress := worker.NewProgress(len(tasks), logger, progressInterval)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Generator:  gen,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Frame rendering failed", "frame", r.Task.Index, "time", r.Task.Time, "error", r.Err)
		}
	}

	progress.LogSummary()

	if archiveWriter != nil {
		logger.Info("Flushing frame archive...")
		if err := archiveWriter.Flush(); err != nil {
			return fmt.Errorf("failed to flush archive: %w", err)
		}
	}

	if failedCount > 0 {
		if !allowFailures {
			return fmt.Errorf("%d frames failed to render", failedCount)
		}
		logger.Warn("Some frames failed to render, but continuing due to --allow-failures flag", "failed_count", failedCount)
	}

	return nil
}
