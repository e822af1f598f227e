package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/SophieEDesign/marketinghub/internal/app"
	"github.com/SophieEDesign/marketinghub/internal/config"
	"github.com/SophieEDesign/marketinghub/internal/db"
	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/service"
	"github.com/SophieEDesign/marketinghub/internal/store"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		runServe()
		return
	}

	switch args[0] {
	case "serve":
		runServe()
	case "admin":
		if err := runAdmin(args[1:]); err != nil {
			log.Fatal(err)
		}
	case "help", "-h", "--help":
		printUsage()
	default:
		printUsage()
		os.Exit(2)
	}
}

func runServe() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	container, cleanup, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatalf("build app: %v", err)
	}
	defer cleanup() //nolint:errcheck

	log.Printf("marketinghub listening on %s (storage=%s)", cfg.Addr, cfg.Storage)
	if cfg.BootstrapToken != "" {
		log.Printf("bootstrap token enabled for user=%s", cfg.BootstrapUser)
	}
	log.Fatal(container.Router.Listen(cfg.Addr))
}

func runAdmin(args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("invalid admin command")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sqliteDB, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer sqliteDB.Close() //nolint:errcheck

	if err := db.Migrate(sqliteDB); err != nil {
		return fmt.Errorf("migrate db: %w", err)
	}

	sqlStore := store.New(sqliteDB)
	userService := service.NewUserService(sqlStore)
	ctx := context.Background()

	switch args[0] {
	case "user":
		if len(args) < 2 {
			printUsage()
			return fmt.Errorf("missing user subcommand")
		}
		switch args[1] {
		case "create":
			if len(args) < 4 {
				return fmt.Errorf("usage: admin user create <username> <password> [role]")
			}
			role := "editor"
			if len(args) > 4 {
				role = args[4]
			}
			// The CLI acts as a local admin so the role argument is honored.
			operator := models.User{Role: models.RoleAdmin}
			user, err := userService.CreateUser(ctx, &operator, service.CreateUserInput{
				Username: args[2],
				Password: args[3],
				Role:     role,
			}, true)
			if err != nil {
				return err
			}
			fmt.Printf("created user %s (id=%d role=%s)\n", user.Username, user.ID, user.Role)
			return nil
		case "token":
			if len(args) < 3 {
				return fmt.Errorf("usage: admin user token <username> [description]")
			}
			user, err := userService.GetUserByIdentifier(ctx, args[2])
			if err != nil {
				return err
			}
			description := "admin generated token"
			if len(args) > 3 {
				description = strings.Join(args[3:], " ")
			}
			token, err := userService.CreateAccessToken(ctx, user.ID, description, nil)
			if err != nil {
				return err
			}
			fmt.Printf("token for %s: %s\n", user.Username, token)
			return nil
		}
		printUsage()
		return fmt.Errorf("unknown user subcommand %q", args[1])
	case "migrate":
		// Migrate already ran above; report and exit.
		fmt.Printf("migrations applied at %s\n", time.Now().UTC().Format(time.RFC3339))
		return nil
	}
	printUsage()
	return fmt.Errorf("unknown admin command %q", args[0])
}

func printUsage() {
	fmt.Println(`usage:
  server [serve]                                 start the HTTP server
  server admin user create <username> <password> [role]
  server admin user token <username> [description]
  server admin migrate`)
}
