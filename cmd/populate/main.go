package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldline/imagingdb/cmd/populate/recurring"
	configs "github.com/fieldline/imagingdb/pkg/configs/populate"
	kpg "github.com/fieldline/imagingdb/pkg/db/postgres"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	"github.com/fieldline/imagingdb/pkg/engine"
	"github.com/fieldline/imagingdb/pkg/engine/populate"
	"github.com/fieldline/imagingdb/pkg/loader"
	"github.com/fieldline/imagingdb/pkg/loader/caiman"
	"github.com/fieldline/imagingdb/pkg/loader/suite2p"
	"github.com/fieldline/imagingdb/pkg/loop"
	"github.com/fieldline/imagingdb/pkg/utils/args"
	"github.com/fieldline/imagingdb/pkg/utils/filewatch"
	"github.com/fieldline/imagingdb/pkg/utils/try"
	"github.com/fieldline/imagingdb/pkg/workspace"
)

// entity types populated per pass, upstream first.
var populationOrder = []catalog.EntityType{
	catalog.Processing,
	catalog.MotionCorrection,
	catalog.MotionCorrectedImages,
	catalog.Segmentation,
	catalog.Fluorescence,
}

// Tally accumulates populate outcomes over the lifetime of the loop.
type Tally struct {
	Succeeded uint
	Pending   uint
	Failed    uint
}

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	// call cancel() when this function exits
	defer cancel()

	// define command line flags
	//-- path to config file
	pconfig := flag.String(
		"config", os.Getenv("IMAGINGDB_CONFIG"), "path to config file",
	)
	//-- which entity type to populate
	entity := args.Parser(catalog.AsEntityType)
	flag.Var(
		entity, "entity",
		"entity type to populate (default: every computed entity type, upstream first)",
	)
	//-- loop policy
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`populate policy (syntax: once|forever[:COOLDOWN]).`+
			` "once" = run a single pass and exit.`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as interval.`,
	)
	// parse command line flags
	flag.Parse()

	{
		// watch config
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(configs.LoadPopulateConfig(*pconfig)).OrFatal(logger)
	cat := try.To(catalog.New()).OrFatal(logger)

	db := try.To(kpg.New(ctx, cat, conf.Database())).OrFatal(logger)
	defer db.Close()
	if err := db.Init(ctx); err != nil {
		logger.Fatal(err)
	}

	deps := populate.Deps{
		Tasks:  db.Task(),
		Locate: workspace.NewLocator(conf),
		Loaders: map[domain.Method]loader.Loader{
			domain.MethodSuite2p: suite2p.New(),
			domain.MethodCaiman:  caiman.New(),
		},
	}

	eng := engine.New(cat, db.Store(), logger)
	for t, m := range map[catalog.EntityType]engine.Maker{
		catalog.Processing: populate.NewProcessing(
			deps, db.File(), workspace.NewFileRoot(conf), workspace.NewTrigger(conf),
		),
		catalog.MotionCorrection:      populate.NewMotionCorrection(deps),
		catalog.MotionCorrectedImages: populate.NewMotionCorrectedImages(deps),
		catalog.Segmentation:          populate.NewSegmentation(deps),
		catalog.Fluorescence:          populate.NewFluorescence(deps),
	} {
		if err := eng.Register(t, m); err != nil {
			logger.Fatal(err)
		}
	}

	targets := populationOrder
	if entity.IsSet() {
		targets = []catalog.EntityType{entity.Value()}
	}

	pol := recurring.Once()
	if policy.IsSet() {
		pol = policy.Value()
	}

	logger.Printf(`start populate loop /w policy "%s"`, pol.String())

	pass := recurring.Task[Tally](func(ctx context.Context, tally Tally) (Tally, bool, error) {
		updated := false
		for _, t := range targets {
			summary, err := eng.Populate(ctx, t)
			tally.Succeeded += uint(len(summary.Succeeded))
			tally.Pending += uint(len(summary.Pending))
			tally.Failed += uint(len(summary.Failed))
			if err != nil {
				return tally, false, err
			}
			logger.Printf("populate %s: %s", t, summary.String())
			if len(summary.Succeeded) != 0 {
				updated = true
			}
		}
		return tally, updated, nil
	})

	tally, err := loop.Start(
		ctx, Tally{}, pass.Applied(recurring.UntilError(pol)),
	)
	logger.Printf(
		"populate loop end: succeeded=%d pending=%d failed=%d",
		tally.Succeeded, tally.Pending, tally.Failed,
	)

	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, "(loop context is cancelled by:", context.Cause(ctx), ")")
	}
	logger.Fatal(err)
}
