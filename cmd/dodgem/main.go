// Command dodgem builds and inspects the exact Dodgem database and
// plays engine games against it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sekika/dodgem/autoplay"
	"github.com/sekika/dodgem/builder"
	"github.com/sekika/dodgem/config"
	"github.com/sekika/dodgem/eval"
	"github.com/sekika/dodgem/evalmap"
	"github.com/sekika/dodgem/game"
)

var configPath = flag.String("config", "", "path to a YAML config file")

func usage(w io.Writer) {
	io.WriteString(w, "usage: dodgem [-config file] <command>\n")
	io.WriteString(w, "commands:\n")
	io.WriteString(w, "build [-unresolved-as-draw] - build the exact evaluation database\n")
	io.WriteString(w, "evalmap - export the evaluation map from the database\n")
	io.WriteString(w, "status - report how many positions the database indexes\n")
	io.WriteString(w, "play [-first n] [-second n] [-games n] - play engine games\n")
	io.WriteString(w, "    levels 1-3 search, level 4 answers from the database\n")
}

func main() {
	flag.Parse()

	cfg := &config.Config{}
	if err := cfg.Load(*configPath); err != nil {
		log.Fatal().Err(err).Msg("load-config")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("parse-log-level")
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rules, err := game.NewRules(cfg.BoardSize)
	if err != nil {
		log.Fatal().Err(err).Msg("rules")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		usage(os.Stderr)
		os.Exit(2)
	}
	switch args[0] {
	case "build":
		err = runBuild(ctx, cfg, rules, args[1:])
	case "evalmap":
		err = runEvalmap(ctx, cfg)
	case "status":
		err = runStatus(ctx, cfg, rules)
	case "play":
		err = runPlay(ctx, cfg, rules, args[1:])
	default:
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", args[0]).Msg("command-failed")
	}
}

func runBuild(ctx context.Context, cfg *config.Config, rules *game.Rules, args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	unresolvedAsDraw := fs.Bool("unresolved-as-draw", false,
		"record positions still undetermined after re-search as draws")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := cfg.OpenStore()
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []builder.Option{builder.WithWorkers(cfg.Workers)}
	if *unresolvedAsDraw {
		opts = append(opts, builder.WithUnresolvedAsDraw())
	}
	return builder.New(rules, db, opts...).Build(ctx)
}

func runEvalmap(ctx context.Context, cfg *config.Config) error {
	db, err := cfg.OpenStore()
	if err != nil {
		return err
	}
	defer db.Close()
	return evalmap.Create(ctx, db, cfg.EvalmapPath, evalmap.DefaultPolicies)
}

func runStatus(ctx context.Context, cfg *config.Config, rules *game.Rules) error {
	db, err := cfg.OpenStore()
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := builder.New(rules, db).Status(ctx)
	if err != nil {
		return err
	}
	for depth := 0; depth <= rules.MaxDepth(); depth++ {
		if count := status.ByDepth[depth]; count > 0 {
			fmt.Printf("depth %d: %d positions\n", depth, count)
		}
	}
	fmt.Printf("%d positions in n=%d\n", status.Positions, status.N)
	return nil
}

func runPlay(ctx context.Context, cfg *config.Config, rules *game.Rules, args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	first := fs.Int("first", 2, "strength level of the first player (1-4)")
	second := fs.Int("second", 2, "strength level of the second player (1-4)")
	games := fs.Int("games", 1, "number of games to play")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var opts []eval.Option
	if *first == eval.MaxLevel || *second == eval.MaxLevel {
		db, err := cfg.OpenStore()
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, eval.WithStore(db))
	}
	if m, err := evalmap.Load(cfg.EvalmapPath, cfg.BoardSize); err == nil {
		opts = append(opts, eval.WithEvalmap(m))
	} else {
		log.Warn().Err(err).Str("path", cfg.EvalmapPath).
			Msg("playing-without-evalmap")
	}

	evaluator := eval.New(rules, opts...)
	runner := autoplay.New(rules, evaluator, [2]int{*first, *second})
	stats, err := runner.PlayGames(ctx, *games)
	if err != nil {
		return err
	}
	fmt.Printf("%dx%d L%d-L%d %d plays: 1st player %d win %d loss %d draw\n",
		rules.Size(), rules.Size(), *first, *second,
		stats.Games, stats.FirstWins, stats.SecondWins, stats.Draws)
	return nil
}
