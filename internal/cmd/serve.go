package cmd

import (
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/marbleshade/internal/scene"
	"github.com/MeKo-Tech/marbleshade/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve frames and samples rendered on-demand",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Bool("cache", true, "Cache rendered frames under --output-dir/cache")
	serveCmd.Flags().Int("max-concurrent-renders", runtime.NumCPU(), "Max concurrent frame renders (default: number of CPUs)")
	serveCmd.Flags().Duration("render-timeout", 30*time.Second, "Timeout per frame render")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for served frames")
	serveCmd.Flags().Int("time-precision", 3, "Decimals requested times are rounded to")
	serveCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	serveCmd.Flags().String("archive", "", "Frame archive to serve under /archive/ (optional)")

	addFrameFlags(serveCmd, "serve", 256)

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.cache", "cache")
	mustBind("serve.max_concurrent_renders", "max-concurrent-renders")
	mustBind("serve.render_timeout", "render-timeout")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.time_precision", "time-precision")
	mustBind("serve.png_compression", "png-compression")
	mustBind("serve.archive", "archive")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	maxConc := viper.GetInt("serve.max_concurrent_renders")
	renderTimeout := viper.GetDuration("serve.render_timeout")
	cacheControl := viper.GetString("serve.cache_control")
	archivePath := viper.GetString("serve.archive")

	cacheDir := ""
	if viper.GetBool("serve.cache") {
		cacheDir = filepath.Join(viper.GetString("output-dir"), "cache")
	}

	engine, err := buildEngine()
	if err != nil {
		return err
	}
	opts := frameOptions("serve")
	renderer, err := scene.NewRenderer(engine, opts, logger)
	if err != nil {
		return fmt.Errorf("failed to init renderer: %w", err)
	}

	frames, err := server.NewOnDemandFrames(engine, renderer, server.OnDemandFramesConfig{
		CacheDir:             cacheDir,
		PNGCompression:       viper.GetString("serve.png_compression"),
		CacheControl:         cacheControl,
		MaxConcurrentRenders: maxConc,
		RenderTimeout:        renderTimeout,
		TimePrecision:        viper.GetInt("serve.time_precision"),
		Warp:                 opts.Warp,
	}, logger)
	if err != nil {
		return err
	}

	var archiveHandler *server.ArchiveHandler
	if archivePath != "" {
		archiveHandler, err = server.NewArchiveHandler(server.ArchiveConfig{ArchivePath: archivePath}, logger)
		if err != nil {
			return err
		}
		defer archiveHandler.Close()
	}

	logger.Info("frame server listening",
		"addr", addr,
		"cache_dir", cacheDir,
		"archive", archivePath,
		"size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"max_concurrent_renders", maxConc,
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewMux(frames, archiveHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
