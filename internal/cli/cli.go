// Package cli implements spacesctl, the maintenance tool that works on the
// bot's database directly.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gorm.io/gorm"

	"spaces-planner/internal/config"
	"spaces-planner/internal/logger"
	"spaces-planner/internal/repository"
	"spaces-planner/internal/service"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// cliDevice is the session key used by the tool.
const cliDevice = "cli"

type app struct {
	configPath string
	stdout     io.Writer
	stderr     io.Writer
	now        func() time.Time
}

// env is an opened database with the services built on it.
type env struct {
	cfg        config.Config
	db         *gorm.DB
	log        *zap.Logger
	users      *repository.UserRepository
	partitions *repository.PartitionRepository
	settings   *repository.SettingRepository
	identity   *service.IdentityService
}

func (e *env) Close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = e.log.Sync()
}

// NewRootCmd creates the root command with injectable IO.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, now: time.Now}

	cmd := &cobra.Command{
		Use:           "spacesctl",
		Short:         "Maintenance tool for the spaces planner",
		Long:          "spacesctl lists users and moves backups in and out of the spaces planner database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a TOML config file")

	cmd.AddCommand(a.newUsersCmd(), a.newExportCmd(), a.newImportCmd(), a.newBackupCmd())
	return cmd
}

func (a *app) open() (*env, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	lg := logger.New()
	if err := lg.Init(cfg.LogLevel); err != nil {
		return nil, err
	}
	db, err := repository.NewDB(cfg.DatabaseURL, lg.StdLog())
	if err != nil {
		return nil, err
	}
	users := repository.NewUserRepository(db)
	return &env{
		cfg:        cfg,
		db:         db,
		log:        lg.Log,
		users:      users,
		partitions: repository.NewPartitionRepository(db),
		settings:   repository.NewSettingRepository(db),
		identity:   service.NewIdentityService(users, cfg.MinPasswordLength),
	}, nil
}

// login opens a session for username after asking for the password.
func (a *app) login(ctx context.Context, e *env, username string) (*service.Session, error) {
	if _, err := fmt.Fprintf(a.stderr, "Password for %s: ", username); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}

	session := service.NewSession(cliDevice, service.SessionDeps{
		Identity:   e.identity,
		Settings:   e.settings,
		Partitions: e.partitions,
		Log:        e.log,
	}, nil, nil)
	if _, err := session.LogIn(ctx, username, string(pw)); err != nil {
		return nil, err
	}
	return session, nil
}

func (a *app) newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer e.Close()

			users, err := e.users.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tID\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\n", u.Username, u.ID, u.CreatedAt.Format(time.DateOnly))
			}
			return w.Flush()
		},
	}
}

func (a *app) newExportCmd() *cobra.Command {
	var username, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's tasks and spaces as a backup document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer e.Close()

			session, err := a.login(cmd.Context(), e, username)
			if err != nil {
				return err
			}
			defer func() { _ = session.LogOut(context.Background()) }()
			ws, err := session.Workspace()
			if err != nil {
				return err
			}
			data, err := ws.Export()
			if err != nil {
				return err
			}
			if out == "" {
				_, err = fmt.Fprintln(a.stdout, string(data))
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			_, err = fmt.Fprintf(a.stdout, "exported %d task(s) to %s\n", len(ws.Snapshot().ActiveTasks), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "username")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) newImportCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace a user's tasks and spaces with the contents of a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			backup, err := service.ParseBackup(data)
			if err != nil {
				return err
			}

			e, err := a.open()
			if err != nil {
				return err
			}
			defer e.Close()

			session, err := a.login(cmd.Context(), e, username)
			if err != nil {
				return err
			}
			defer func() { _ = session.LogOut(context.Background()) }()
			ws, err := session.Workspace()
			if err != nil {
				return err
			}
			if err := ws.Import(cmd.Context(), backup); err != nil {
				return err
			}
			snap := ws.Snapshot()
			_, err = fmt.Fprintf(a.stdout, "imported: %d task(s), %d space(s)\n", len(snap.ActiveTasks), len(snap.ActiveCategories))
			return err
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "username")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) newBackupCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export every user into the backup directory now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer e.Close()

			if dir == "" {
				dir = e.cfg.BackupDir
			}
			if dir == "" {
				return fmt.Errorf("no backup directory: pass --dir or set backup_dir")
			}
			paths, err := service.NewBackupService(e.users, e.partitions, dir, e.log).ExportAll(cmd.Context(), a.now())
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(a.stdout, p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "target directory (default backup_dir)")
	return cmd
}
