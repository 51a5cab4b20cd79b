package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"deltaglass.dev/deltaglass/engine"
	"deltaglass.dev/deltaglass/logging"
	"deltaglass.dev/deltaglass/logpath"
	"deltaglass.dev/deltaglass/snapshot"
	"deltaglass.dev/deltaglass/storage/localfs"
	"deltaglass.dev/deltaglass/storage/objstore"
	"deltaglass.dev/deltaglass/tablechanges"
)

func main() {
	slog.SetDefault(slog.New(logging.NewTextHandler()))

	app := &cli.App{
		Name:  "deltaglass",
		Usage: "Inspect Delta tables by replaying their transaction logs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a YAML config file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{{
			Name:      "inspect",
			Usage:     "Print version, protocol, schema, and live file count for one or more tables",
			ArgsUsage: "[table-path ...]",
			Flags: []cli.Flag{
				&cli.Uint64Flag{
					Name:  "version",
					Usage: "time travel to this table version instead of the latest",
				},
			},
			Action: runInspect,
		}, {
			Name:      "log",
			Usage:     "Print the resolved log segment: checkpoint parts and the commit cover",
			ArgsUsage: "table-path",
			Flags: []cli.Flag{
				&cli.Uint64Flag{
					Name:  "version",
					Usage: "resolve the segment for this table version instead of the latest",
				},
			},
			Action: runLog,
		}, {
			Name:      "changes",
			Usage:     "Print change data feed actions for a version range",
			ArgsUsage: "table-path",
			Flags: []cli.Flag{
				&cli.Uint64Flag{
					Name:     "start",
					Usage:    "first version of the change range",
					Required: true,
				},
				&cli.Uint64Flag{
					Name:  "end",
					Usage: "last version of the change range, defaults to the latest",
				},
			},
			Action: runChanges,
		}},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup(ctx *cli.Context) (*Config, error) {
	cfg := &Config{}
	if path := ctx.String("config"); path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if ctx.Bool("verbose") || cfg.LogLevel == "debug" {
		logging.SetLevel(slog.LevelDebug)
	}
	return cfg, nil
}

// openTable builds the engine and table root for a table path. s3:// paths go
// through the S3 store; anything else is a local directory.
func openTable(ctx context.Context, cfg *Config, tablePath string) (engine.Engine, string, error) {
	if bucketPath, ok := strings.CutPrefix(tablePath, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(bucketPath, "/")
		store, err := objstore.NewS3Store(ctx, &objstore.NewS3StoreParams{
			Bucket:          bucket,
			Prefix:          prefix,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, "", err
		}
		return engine.NewDefault(store), "", nil
	}
	if filepath.IsAbs(tablePath) {
		return engine.NewDefault(localfs.NewDirectory(tablePath)), "", nil
	}
	return engine.NewDefault(localfs.NewInWorkingDirectory(tablePath)), "", nil
}

func tablePaths(ctx *cli.Context, cfg *Config) ([]string, error) {
	paths := ctx.Args().Slice()
	for _, t := range cfg.Tables {
		paths = append(paths, t.Path)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no table paths given on the command line or in config")
	}
	return paths, nil
}

func targetVersion(ctx *cli.Context) *uint64 {
	if !ctx.IsSet("version") {
		return nil
	}
	v := ctx.Uint64("version")
	return &v
}

func runInspect(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	paths, err := tablePaths(ctx, cfg)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx.Context)
	results := make([]string, len(paths))
	for i, tablePath := range paths {
		group.Go(func() error {
			summary, err := inspectTable(groupCtx, cfg, tablePath, targetVersion(ctx))
			if err != nil {
				return fmt.Errorf("%s: %w", tablePath, err)
			}
			results[i] = summary
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	for _, r := range results {
		fmt.Print(r)
	}
	return nil
}

func inspectTable(ctx context.Context, cfg *Config, tablePath string, version *uint64) (string, error) {
	eng, root, err := openTable(ctx, cfg, tablePath)
	if err != nil {
		return "", err
	}

	unresolved := &snapshot.UnresolvedTable{Root: root, TargetVersion: version}
	snap, err := unresolved.Resolve(eng)
	if err != nil {
		return "", err
	}

	scan, err := snap.ScanFiles(eng, nil)
	if err != nil {
		return "", err
	}
	liveFiles := 0
	for batch, err := range scan {
		if err != nil {
			return "", err
		}
		liveFiles += batch.Selection.Count()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", tablePath)
	fmt.Fprintf(&b, "  version:    %d\n", snap.Version())
	fmt.Fprintf(&b, "  protocol:   reader %d, writer %d\n",
		snap.Protocol().MinReaderVersion, snap.Protocol().MinWriterVersion)
	fmt.Fprintf(&b, "  schema:     %s\n", snap.Schema())
	fmt.Fprintf(&b, "  live files: %d\n", liveFiles)
	return b.String(), nil
}

func runLog(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 1 {
		return fmt.Errorf("log takes exactly one table path")
	}
	eng, root, err := openTable(ctx.Context, cfg, ctx.Args().First())
	if err != nil {
		return err
	}

	unresolved := &snapshot.UnresolvedTable{Root: root, TargetVersion: targetVersion(ctx)}
	snap, err := unresolved.Resolve(eng)
	if err != nil {
		return err
	}
	segment := snap.LogSegment()

	if segment.CheckpointVersion != nil {
		fmt.Printf("checkpoint at version %d:\n", *segment.CheckpointVersion)
		for _, part := range segment.CheckpointParts {
			fmt.Printf("  %s\n", part.Filename)
		}
	} else {
		fmt.Println("no checkpoint")
	}

	fmt.Println("commit cover (newest first):")
	for _, p := range segment.FindCommitCover() {
		switch p.Type {
		case logpath.CompactedCommit:
			fmt.Printf("  %s (compaction %d..%d)\n", p.Filename, p.Version, p.CompactionHi)
		default:
			fmt.Printf("  %s\n", p.Filename)
		}
	}
	fmt.Printf("commits since checkpoint: %d\n", segment.CommitsSinceCheckpoint())
	fmt.Printf("commits since compaction or checkpoint: %d\n", segment.CommitsSinceLogCompactionOrCheckpoint())
	return nil
}

func runChanges(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 1 {
		return fmt.Errorf("changes takes exactly one table path")
	}
	eng, root, err := openTable(ctx.Context, cfg, ctx.Args().First())
	if err != nil {
		return err
	}

	var end *uint64
	if ctx.IsSet("end") {
		v := ctx.Uint64("end")
		end = &v
	}
	changes, err := tablechanges.Scan(eng, root, ctx.Uint64("start"), end, nil)
	if err != nil {
		return err
	}

	for md, err := range changes {
		if err != nil {
			return err
		}
		fmt.Printf("version %d: %d change actions\n", md.CommitVersion, md.Selection.Count())
	}
	return nil
}
