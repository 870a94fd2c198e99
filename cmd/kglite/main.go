// Command kglite builds a property graph from a blueprint configuration
// and persists it as an artifact.
//
// Usage:
//
//	kglite -blueprint build.json [-root data/] [-out graph.kgl] [-serializer msgpack] [-v]
//
// The output target may come from the blueprint's settings or the -out
// flag; a path with a file extension is written as a single framed
// snapshot file, a path without one as a BadgerDB directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kkollsga/kglite/pkg/blueprint"
	"github.com/kkollsga/kglite/pkg/envutil"
	"github.com/kkollsga/kglite/pkg/kglite"
	"github.com/kkollsga/kglite/pkg/storage"
	"github.com/kkollsga/kglite/pkg/tabular"
)

func main() {
	var (
		blueprintPath = flag.String("blueprint", "", "path to the blueprint JSON file (required)")
		root          = flag.String("root", envutil.Get("KGLITE_ROOT", ""), "source root directory (overrides blueprint settings)")
		out           = flag.String("out", "", "artifact output path (overrides blueprint settings)")
		serializer    = flag.String("serializer", envutil.Get("KGLITE_SERIALIZER", "msgpack"), "snapshot serializer: gob or msgpack")
		verbose       = flag.Bool("v", envutil.GetBool("KGLITE_VERBOSE", false), "verbose logging")
	)
	flag.Parse()

	if *blueprintPath == "" {
		fmt.Fprintln(os.Stderr, "kglite: -blueprint is required")
		flag.Usage()
		os.Exit(2)
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	if err := run(*blueprintPath, *root, *out, *serializer, logger); err != nil {
		logger.Error("build failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(blueprintPath, root, out, serializerTag string, logger *zap.Logger) error {
	ser, err := storage.ParseSerializer(serializerTag)
	if err != nil {
		return err
	}
	cfg, err := blueprint.Load(blueprintPath)
	if err != nil {
		return err
	}
	if root == "" {
		root = cfg.Settings.SourceRoot()
	}
	if root == "" {
		root = filepath.Dir(blueprintPath)
	}
	if out == "" {
		out = cfg.Settings.OutputTarget()
	}

	g := kglite.New(kglite.WithLogger(logger))
	builder := blueprint.NewBuilder(g, tabular.Dir{Root: root})
	if err := builder.Build(cfg); err != nil {
		return err
	}

	for i, rep := range g.ReportHistory() {
		logger.Info("operation report",
			zap.Int("index", i),
			zap.String("operation", rep.Operation),
			zap.Int("nodes_created", rep.NodesCreated),
			zap.Int("nodes_updated", rep.NodesUpdated),
			zap.Int("nodes_skipped", rep.NodesSkipped),
			zap.Int("edges_created", rep.EdgesCreated),
			zap.Int("edges_skipped", rep.EdgesSkipped),
			zap.Bool("has_errors", rep.HasErrors),
			zap.Int("errors", len(rep.Errors)))
	}

	if out == "" {
		logger.Info("no output target configured, skipping persistence")
		return nil
	}
	sn := storage.BuildSnapshot(g.Store())
	if filepath.Ext(out) != "" {
		if err := storage.WriteFile(out, sn, ser); err != nil {
			return err
		}
		logger.Info("wrote snapshot file", zap.String("path", out))
		return nil
	}
	bs, err := storage.OpenBadger(out, ser)
	if err != nil {
		return err
	}
	defer bs.Close()
	if err := bs.SaveSnapshot(sn); err != nil {
		return err
	}
	logger.Info("wrote badger artifact", zap.String("dir", out))
	return nil
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			return l
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
