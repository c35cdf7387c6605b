// Package main is the entry point for the ClassReel admin CLI.
// It manages user accounts, inspects license usage and seeds ledger
// counters directly against the configured bucket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/classreel/classreel/internal/blobstore"
	cacheredis "github.com/classreel/classreel/internal/cache/redis"
	"github.com/classreel/classreel/internal/config"
	"github.com/classreel/classreel/internal/domain"
	"github.com/classreel/classreel/internal/license"
	"github.com/classreel/classreel/internal/lock"
	"github.com/classreel/classreel/internal/repository"
	"github.com/classreel/classreel/internal/repository/blob"
	"github.com/classreel/classreel/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "version":
		fmt.Printf("ClassReel Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		runOrDie(userCommand, args)

	case "license":
		runOrDie(licenseCommand, args)

	case "video":
		runOrDie(videoCommand, args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runOrDie(cmd func(context.Context, *env, []string) error, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e, err := newEnv(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer e.close()

	if err := cmd(ctx, e, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env holds the wired components the admin commands operate on.
type env struct {
	cfg       *config.Config
	users     *service.UserService
	videos    *service.VideoService
	userRepo  repository.UserRepository
	ledger    license.Ledger
	validator *license.Validator
	closers   []func() error
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

func newEnv(ctx context.Context) (*env, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CLASSREEL_CONFIG"))
	if err != nil {
		return nil, err
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	store, err := blobstore.NewS3Store(ctx, cfg.S3, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}

	var sharedCache repository.Cache
	if cfg.Redis.Enabled {
		client := goredis.NewClient(&goredis.Options{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		e.closers = append(e.closers, client.Close)
		sharedCache = cacheredis.NewCacheFromClient(client)
	}

	userRepo := blob.NewUserRepository(store, nil, 0, logger)
	videoRepo := blob.NewVideoRepository(store, cfg.Listing, logger)

	validator := license.NewValidator(cfg.Licenses)
	ledger, closeLedger, err := license.NewLedger(ctx, cfg.Ledger, validator, userRepo, sharedCache, logger)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, closeLedger)

	locker := lock.NewMemoryLocker()

	e.userRepo = userRepo
	e.ledger = ledger
	e.validator = validator
	e.users = service.NewUserService(userRepo, videoRepo, validator, ledger, locker, cfg.Lock.TTL, nil, nil, logger)
	e.videos = service.NewVideoService(videoRepo, userRepo, locker, cfg.Lock.TTL, nil, logger)

	return e, nil
}

func userCommand(ctx context.Context, e *env, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: classreel-admin user <create|list|show|delete> [flags]")
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("user create", flag.ExitOnError)
		email := fs.String("email", "", "user email (required)")
		firstName := fs.String("first-name", "", "display name (required)")
		accountType := fs.String("type", "student", "account type: student or teacher")
		school := fs.String("school", "", "school name (required)")
		licenseKey := fs.String("license", "", "license key (required)")
		fs.Parse(args[1:])

		password, err := promptPassword()
		if err != nil {
			return err
		}

		out, err := e.users.Register(ctx, service.RegisterInput{
			Email:       *email,
			FirstName:   *firstName,
			Password:    password,
			AccountType: domain.AccountType(strings.ToLower(*accountType)),
			SchoolName:  *school,
			LicenseKey:  *licenseKey,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s (%s) at %s\n", out.User.Email, out.User.AccountType, out.User.SchoolName)
		return nil

	case "list":
		users, err := e.users.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tNAME\tTYPE\tSCHOOL\tLICENSE\tCLASSES")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				u.Email, u.FirstName, u.AccountType, u.SchoolName, u.LicenseKey, strings.Join(u.ClassCodes, ","))
		}
		return w.Flush()

	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: classreel-admin user show <email>")
		}
		out, err := e.users.Get(ctx, args[1])
		if err != nil {
			return err
		}
		u := out.User
		fmt.Printf("Email:    %s\n", u.Email)
		fmt.Printf("Name:     %s\n", u.FirstName)
		fmt.Printf("Type:     %s\n", u.AccountType)
		fmt.Printf("School:   %s\n", u.SchoolName)
		fmt.Printf("License:  %s\n", u.LicenseKey)
		fmt.Printf("Classes:  %s\n", strings.Join(u.ClassCodes, ", "))
		fmt.Printf("Videos:   %d\n", len(out.Videos))
		for _, v := range out.Videos {
			fmt.Printf("  - %s (%s) viewed=%v\n", v.Title, v.ClassCode, v.Viewed)
		}
		return nil

	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: classreel-admin user delete <email>")
		}
		out, err := e.users.Delete(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %s (%d videos removed, %d failed)\n", args[1], out.VideosDeleted, out.VideosFailed)
		return nil

	default:
		return fmt.Errorf("unknown user subcommand: %s", args[0])
	}
}

func licenseCommand(ctx context.Context, e *env, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: classreel-admin license <status|seed>")
	}

	switch args[0] {
	case "status":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tUSED\tLIMIT")
		for _, key := range e.validator.Keys() {
			used, err := e.ledger.Count(ctx, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%d\n", key, used, e.validator.LimitFor(key))
		}
		return w.Flush()

	case "seed":
		if err := license.SeedFromStore(ctx, e.ledger, e.validator, e.userRepo); err != nil {
			return err
		}
		fmt.Println("Ledger counters aligned with stored user records")
		return nil

	default:
		return fmt.Errorf("unknown license subcommand: %s", args[0])
	}
}

func videoCommand(ctx context.Context, e *env, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: classreel-admin video <list|delete> [flags]")
	}

	switch args[0] {
	case "list":
		if len(args) < 2 {
			return fmt.Errorf("usage: classreel-admin video list <email>")
		}
		entries, err := e.videos.List(ctx, args[1])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TITLE\tCLASS\tOWNER\tVIEWED\tKEY")
		for _, v := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", v.Title, v.ClassCode, v.UserEmail, v.Viewed, v.VideoKey)
		}
		return w.Flush()

	case "delete":
		fs := flag.NewFlagSet("video delete", flag.ExitOnError)
		school := fs.String("school", "", "school name (required)")
		class := fs.String("class", "", "class code (required)")
		email := fs.String("email", "", "owner email (required)")
		title := fs.String("title", "", "video title (required)")
		fs.Parse(args[1:])

		if err := e.videos.Delete(ctx, *school, *class, *email, *title); err != nil {
			return err
		}
		fmt.Printf("Deleted %s/%s/%s/%s\n", *school, *class, *email, *title)
		return nil

	default:
		return fmt.Errorf("unknown video subcommand: %s", args[0])
	}
}

// promptPassword reads a password from the terminal without echo.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

func printUsage() {
	fmt.Println(`ClassReel Admin CLI

Usage:
  classreel-admin <command> [arguments]

Commands:
  user        Manage user accounts (create, list, show, delete)
  license     Inspect license usage and seed ledger counters
  video       List and remove stored videos
  version     Print version information
  help        Show this help message

Examples:
  classreel-admin user create --email a@school.org --first-name Alex --type student --school "Springfield High" --license 3399
  classreel-admin user show a@school.org
  classreel-admin license status
  classreel-admin video list a@school.org

Configuration is read from CLASSREEL_* environment variables, .env, or the
file named by CLASSREEL_CONFIG.`)
}
