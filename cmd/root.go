// Package cmd holds the notebook command line: serve (the default), sweep
// and hash-password.
package cmd

import (
	"context"
	"fmt"
	"io"

	"notebook_server_go/config"
	"notebook_server_go/data"
	"notebook_server_go/filestore"
	"notebook_server_go/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what the subcommands share once the root command has
// resolved settings.
type app struct {
	v         *viper.Viper
	cfgFile   string
	settings  *config.Settings
	log       zerolog.Logger
	logCloser io.Closer
}

// RootCommand creates the root command with every subcommand attached.
func RootCommand() *cobra.Command {
	a := &app{v: config.NewViper(), log: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:           "notebook",
		Short:         "Personal note and photo journal server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd := serveCommand(a)
	hashCmd := hashPasswordCommand()
	rootCmd.AddCommand(serveCmd, sweepCommand(a), hashCmd)
	rootCmd.RunE = serveCmd.RunE

	if err := setupFlags(rootCmd, a); err != nil {
		// Flag names are static; a binding failure is a programming error.
		panic(err)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == hashCmd.Name() {
			return nil
		}
		return a.initialize()
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a.logCloser != nil {
			a.logCloser.Close()
		}
	}
	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return RootCommand().ExecuteContext(ctx)
}

func setupFlags(rootCmd *cobra.Command, a *app) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./notebook.yaml or $HOME/.notebook/notebook.yaml)")
	flags.String("port", "", "HTTP port to listen on")
	flags.String("db", "", "path of the SQLite database file")
	flags.String("upload-dir", "", "directory holding uploaded images")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("unique-dates", true, "allow at most one folder per date")

	bindings := map[string]string{
		"server.port":          "port",
		"database.path":        "db",
		"storage.upload_dir":   "upload-dir",
		"log.level":            "log-level",
		"folders.unique_dates": "unique-dates",
	}
	for key, flag := range bindings {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// initialize loads settings and builds the logger.
func (a *app) initialize() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	}
	settings, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.settings = settings

	log, closer, err := logger.New(logger.Options{
		Level:  settings.Log.Level,
		File:   settings.Log.File,
		Pretty: settings.Log.Pretty,
	})
	if err != nil {
		return err
	}
	a.log = log
	a.logCloser = closer
	return nil
}

// openStorage opens the database and the file store.
func (a *app) openStorage(ctx context.Context) (*data.Store, *filestore.Store, error) {
	store, err := data.Open(ctx, data.Options{
		Path:        a.settings.Database.Path,
		UniqueDates: a.settings.Folders.UniqueDates,
	}, a.log)
	if err != nil {
		return nil, nil, err
	}
	files, err := filestore.New(a.settings.Storage.UploadDir, a.settings.Storage.AllowedExtensions, a.log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, files, nil
}
