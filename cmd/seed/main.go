// Command seed loads authored content files into the catalog database.
//
//	seed -file content/courses.yaml -file content/careers.yaml
//	seed -file content.yaml -dry-run
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/devpath/progression-engine/config"
	"github.com/devpath/progression-engine/internal/bootstrap"
	"github.com/devpath/progression-engine/internal/infrastructure/persistence/catalog"
	"github.com/devpath/progression-engine/pkg/logger"
)

type fileList []string

func (l *fileList) String() string { return strings.Join(*l, ",") }
func (l *fileList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var files fileList
	var dryRun bool
	flag.Var(&files, "file", "content YAML file to load (repeatable)")
	flag.BoolVar(&dryRun, "dry-run", false, "validate the files without writing")
	flag.Parse()

	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no -file given")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, files, dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, files []string, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := bootstrap.NewLogger(cfg).With(logger.Component("seed"))
	defer log.Sync()

	bundles := make([]*catalog.Bundle, 0, len(files))
	for _, path := range files {
		b, err := catalog.LoadYAMLFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		log.Info("content file parsed",
			logger.String("file", path),
			logger.Int("courses", len(b.Courses)),
			logger.Int("careers", len(b.Careers)),
			logger.Int("problems", len(b.Problems)),
		)
		bundles = append(bundles, b)
	}
	if dryRun {
		log.Info("dry run, nothing written")
		return nil
	}

	store, err := catalog.Open(catalog.Options{
		Driver:       cfg.Content.Driver,
		DSN:          cfg.Content.DSN,
		QueryTimeout: cfg.Database.QueryTimeout,
		Silent:       cfg.IsProduction(),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	for i, b := range bundles {
		if err := store.Seed(ctx, b); err != nil {
			return fmt.Errorf("%s: %w", files[i], err)
		}
		log.Info("content file seeded", logger.String("file", files[i]))
	}
	return nil
}
