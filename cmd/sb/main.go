// Command sb imports org-mode syllabi into a course database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syllabooster/syllabooster/internal/config"
	"github.com/syllabooster/syllabooster/internal/logging"
	"github.com/syllabooster/syllabooster/internal/model"
	"github.com/syllabooster/syllabooster/internal/store"
	"github.com/syllabooster/syllabooster/internal/ui"
)

var (
	cfgFile string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "sb",
	Short: "Import org-mode syllabi into courses",
	Long: `sb keeps a course database in step with org-mode outlines.

Level-1 headlines of an outline are units, level-2 headlines are points.
Points are shared between courses by heading, so editing a point in one
syllabus updates it everywhere it is used.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(cfgFile); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		ui.Init(cfg.UI.Color)

		logger, logCloser, err = logging.New(logging.Options{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "import", Title: "Importing:"},
		&cobra.Group{ID: "manage", Title: "Managing data:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default searches $XDG_CONFIG_HOME/syllabooster and .)")
	flags.String("db", "", "path to the course database")
	flags.String("user", "", "user the command acts for")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("color", "", "color output (auto, always, never)")

	_ = viper.BindPFlag("database.path", flags.Lookup("db"))
	_ = viper.BindPFlag("user", flags.Lookup("user"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("ui.color", flags.Lookup("color"))
}

// openStore opens the configured database and makes sure the schema exists.
func openStore(ctx context.Context) (*store.DB, error) {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchemaContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("opened database", "path", db.Path())
	return db, nil
}

// currentUser resolves the configured user.
func currentUser(ctx context.Context, db *store.DB) (*model.User, error) {
	name := strings.TrimSpace(cfg.User)
	if name == "" {
		return nil, errors.New("no user given: pass --user or set user in the config file")
	}
	user, err := db.FindUser(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("user %q does not exist (create it with 'sb user add %s')", name, name)
	}
	return user, err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}
