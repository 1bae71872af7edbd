package main

import (
	"context"
	"fmt"
	"os"
	"time"

	mongoMigration "stayhub/internal/migrations/mongo"
	"stayhub/pkg/client"
	"stayhub/pkg/config"
	"stayhub/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const JobName = "mongo-migration"

// The job needs only Mongo settings, so it reads them through flags instead
// of config.Load, which would also demand the HTTP service's secrets.
func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "migrate",
		Usage: "manage the stayhub MongoDB schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mongo-uri",
				Value:   config.DefaultMongoURI,
				EnvVars: []string{config.EnvMongoURI},
			},
			&cli.StringFlag{
				Name:    "database",
				Value:   config.DefaultMongoDatabaseName,
				EnvVars: []string{config.EnvMongoDatabaseName},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   config.DefaultLogLevel,
				EnvVars: []string{config.EnvLogLevel},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "overall deadline for the job",
				Value:   120 * time.Second,
				EnvVars: []string{"MIGRATION_TIMEOUT"},
			},
		},
		Action: migrateUp,
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "create collections, validators and indexes",
				Action: migrateUp,
			},
			{
				Name:  "reset",
				Usage: "drop every stayhub collection and migrate again",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "confirm dropping all data",
					},
				},
				Action: reset,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
}

type job struct {
	log      *logger.Logger
	client   *client.Client
	database string
}

func withJob(c *cli.Context, fn func(ctx context.Context, j *job) error) error {
	timeout := c.Duration("timeout")
	ctx, cancel := context.WithTimeout(c.Context, timeout)
	defer cancel()

	j := &job{
		log: logger.New(logger.Config{
			Level:   c.String("log-level"),
			Format:  logger.JSON,
			Service: JobName,
		}),
		client:   client.NewClient(),
		database: c.String("database"),
	}
	j.client.SetMongo(j.log, c.String("mongo-uri"), config.DefaultMongoConnTimeout)
	defer j.client.GracefulShutdown(j.log)

	return fn(ctx, j)
}

func migrateUp(c *cli.Context) error {
	return withJob(c, func(ctx context.Context, j *job) error {
		j.log.Info("Starting Mongo migration job")
		return mongoMigration.RunMigration(ctx, j.client.Mongo, j.database, j.log)
	})
}

func reset(c *cli.Context) error {
	if !c.Bool("yes") {
		return fmt.Errorf("refusing to drop collections without --yes")
	}
	return withJob(c, func(ctx context.Context, j *job) error {
		j.log.Warn("Dropping all collections", "database", j.database)
		if err := mongoMigration.DropAll(ctx, j.client.Mongo, j.database, j.log); err != nil {
			return err
		}
		return mongoMigration.RunMigration(ctx, j.client.Mongo, j.database, j.log)
	})
}
