// Command seed populates the database with demo data.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"agora/internal/bootstrap"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/seed"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run() error {
	preset := flag.String("preset", "standard", "Data set size: "+presetNames())
	fixture := flag.String("fixture", "", "YAML fixture file to apply instead of generated data (\"demo\" for the embedded one)")
	clean := flag.Bool("clean", false, "Delete existing content before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.IsProduction() {
		return fmt.Errorf("refusing to seed a %s database", cfg.Env)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	opts, ok := seed.Presets[*preset]
	if !ok {
		return fmt.Errorf("unknown preset %q (want one of %s)", *preset, presetNames())
	}
	opts.RandSeed = *randSeed
	s := seed.NewSeeder(db, opts)

	if *clean {
		if err := s.ClearAll(ctx); err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
	}

	if err := bootstrap.SeedBuiltIns(ctx, db); err != nil {
		return err
	}

	var res *seed.Result
	switch *fixture {
	case "":
		log.Printf("🌱 Seeding preset %q", *preset)
		res, err = s.Run(ctx)
	default:
		fx, loadErr := loadFixture(*fixture)
		if loadErr != nil {
			return loadErr
		}
		log.Printf("🌱 Applying fixture %s", *fixture)
		res, err = seed.ApplyFixture(ctx, db, fx)
	}
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	log.Printf("✨ Done: %d users, %d communities, %d posts, %d comments, %d replies, %d votes",
		res.Users, res.Communities, res.Posts, res.Comments, res.Replies, res.Votes)
	return nil
}

func loadFixture(name string) (*seed.Fixture, error) {
	if name == "demo" {
		return seed.LoadFixture(nil, "demo.yaml")
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return seed.ParseFixture(data)
}

func presetNames() string {
	names := make([]string, 0, len(seed.Presets))
	for name := range seed.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
