// Command migrate manages the database schema outside of the API server
package main

import (
	"bitwise74/user-api/db"
	"bitwise74/user-api/internal/model"
	"bitwise74/user-api/internal/store"
	"bitwise74/user-api/pkg/security"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var (
	adminName     = pflag.String("admin-name", "Admin User", "Name of the seeded admin")
	adminEmail    = pflag.String("admin-email", "admin@example.com", "Email of the seeded admin")
	adminPassword = pflag.String("admin-password", "", "Password of the seeded admin, falls back to ADMIN_PASSWORD")
)

func main() {
	pflag.Usage = usage
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	v := viper.GetViper()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:users.db?_foreign_keys=on")

	driver := v.GetString("database.driver")

	// db.New brings the schema up to date before any command runs
	d, err := db.New(db.Config{Driver: driver, DSN: v.GetString("database.dsn")})
	if err != nil {
		fatalf("failed to open database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch args[0] {
	case "up":
		fmt.Println("migrations: up completed")

	case "status":
		statuses, err := db.Status(ctx, d, driver)
		if err != nil {
			fatalf("status failed: %v", err)
		}

		for _, s := range statuses {
			fmt.Printf("%-40s %s\n", s.Source.Path, s.State)
		}

	case "seed-admin":
		if err := seedAdmin(ctx, d); err != nil {
			fatalf("seed-admin failed: %v", err)
		}

	default:
		usage()
		os.Exit(1)
	}
}

func seedAdmin(ctx context.Context, d *gorm.DB) error {
	password := *adminPassword
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	if password == "" {
		return errors.New("no admin password provided, use --admin-password or ADMIN_PASSWORD")
	}

	hash, err := security.New().GenerateFromPassword(password)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	u := &model.User{
		Name:         *adminName,
		Email:        strings.ToLower(strings.TrimSpace(*adminEmail)),
		PasswordHash: hash,
		Status:       model.StatusActive,
		LastLogin:    &now,
	}

	if err := store.NewUsers(d).Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			fmt.Printf("admin %v already exists\n", u.Email)
			return nil
		}
		return err
	}

	fmt.Printf("admin created (id: %d, email: %v)\n", u.ID, u.Email)
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: migrate [flags] <command>

Commands:
  up           apply all pending migrations
  status       list migrations and whether they are applied
  seed-admin   create an active admin account

Environment:
  DATABASE_DRIVER   postgres or sqlite (default sqlite)
  DATABASE_DSN      connection string

Flags:
`)
	pflag.PrintDefaults()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
