package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"notify-hub.backend/internal/app"
	"notify-hub.backend/internal/config"
	"notify-hub.backend/internal/infrastructure/datasources/postgres"
	"notify-hub.backend/internal/infrastructure/migrations"
	"notify-hub.backend/pkg/crypto"
	"notify-hub.backend/pkg/jwt"
	"notify-hub.backend/pkg/logger"
	"notify-hub.backend/pkg/redis"
	"notify-hub.backend/pkg/utils"
)

var (
	loadCfg   = config.Load
	openSQL   = postgres.NewConnection
	openGorm  = postgres.OpenGorm
	openRedis = redis.Open
	dialect   = migrations.DialectPostgres
)

func main() {
	_ = godotenv.Load()

	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "notifyctl",
		Usage:  "Operate the notification hub",
		Writer: out,
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logger.Init(loadCfg().Server.Env)
			return ctx, nil
		},
		Commands: []*cli.Command{
			migrateCommand(),
			sweepCommand(),
			tokenCommand(),
			serviceTokenCommand(),
		},
	}
}

func withDB(ctx context.Context, fn func(cfg *config.Config, db *sql.DB) error) error {
	cfg := loadCfg()
	db, err := openSQL(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(cfg, db)
}

func withContainer(ctx context.Context, fn func(c *app.Container) error) error {
	return withDB(ctx, func(cfg *config.Config, db *sql.DB) error {
		gdb, err := openGorm(db)
		if err != nil {
			return err
		}
		return fn(app.New(ctx, cfg, gdb, openStore(cfg.Redis)))
	})
}

// openStore returns nil when Redis is disabled or down; the sweep then runs unlocked.
func openStore(cfg config.RedisConfig) *redis.Store {
	if !cfg.Enabled {
		return nil
	}
	client, err := openRedis(cfg.URL, cfg.Password)
	if err != nil {
		return nil
	}
	return redis.NewStore(client, cfg.OpTimeout)
}

func migrateCommand() *cli.Command {
	run := func(op func(db *sql.DB, dialect string) error) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			return withDB(ctx, func(_ *config.Config, db *sql.DB) error {
				return op(db, dialect)
			})
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply or inspect schema migrations",
		Commands: []*cli.Command{
			{Name: "up", Usage: "Apply pending migrations", Action: run(migrations.Up)},
			{Name: "down", Usage: "Roll back the last migration", Action: run(migrations.Down)},
			{Name: "status", Usage: "Print migration status", Action: run(migrations.Status)},
			{
				Name:  "version",
				Usage: "Print the current schema version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDB(ctx, func(_ *config.Config, db *sql.DB) error {
						v, err := migrations.Version(db, dialect)
						if err != nil {
							return err
						}
						_, err = fmt.Fprintln(cmd.Root().Writer, v)
						return err
					})
				},
			},
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run one delivery pass and print its report",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withContainer(ctx, func(c *app.Container) error {
				report, ran, err := c.Sweep.RunOnce(ctx)
				if err != nil {
					return err
				}
				if !ran {
					return errors.New("another sweep holds the lock")
				}
				enc := json.NewEncoder(cmd.Root().Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			})
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage verification tokens",
		Commands: []*cli.Command{
			{
				Name:      "issue",
				Usage:     "Issue or rotate the token for an address and print the secret",
				ArgsUsage: "<email>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return errors.New("usage: notifyctl token issue <email>")
					}
					return withContainer(ctx, func(c *app.Container) error {
						issued, err := c.Tokens.IssueOrRotate(ctx, cmd.Args().First())
						if err != nil {
							return err
						}
						_, err = fmt.Fprintf(cmd.Root().Writer, "token_id: %s\ntoken:    %s\n", issued.TokenID, issued.Secret)
						return err
					})
				},
			},
			{
				Name:      "revoke",
				Usage:     "Revoke a token by id",
				ArgsUsage: "<token-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "actor", Value: "notifyctl", Usage: "Recorded as the revoking party"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := utils.ParseID(cmd.Args().First())
					if err != nil {
						return err
					}
					return withContainer(ctx, func(c *app.Container) error {
						if err := c.Tokens.Revoke(ctx, id, cmd.String("actor")); err != nil {
							return err
						}
						_, err := fmt.Fprintln(cmd.Root().Writer, "revoked", id)
						return err
					})
				},
			},
			{
				Name:      "hash",
				Usage:     "Print the stored hash of a secret",
				ArgsUsage: "<secret>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return errors.New("usage: notifyctl token hash <secret>")
					}
					_, err := fmt.Fprintln(cmd.Root().Writer, crypto.HashToken(cmd.Args().First()))
					return err
				},
			},
		},
	}
}

func serviceTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "service-token",
		Usage:     "Mint a bearer token for a collaborator",
		ArgsUsage: "<subject>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "role", Value: jwt.RoleService, Usage: "service or admin"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			subject := cmd.Args().First()
			if subject == "" {
				return errors.New("usage: notifyctl service-token <subject> [--role service|admin]")
			}
			role := cmd.String("role")
			if role != jwt.RoleService && role != jwt.RoleAdmin {
				return fmt.Errorf("unknown role %q", role)
			}

			cfg := loadCfg()
			token, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry).GenerateToken(subject, role)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, token)
			return err
		},
	}
}
