package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/qtdeploy/qtdeploy/internal/config"
	"github.com/qtdeploy/qtdeploy/internal/deploy"
	"github.com/qtdeploy/qtdeploy/internal/layout"
	"github.com/qtdeploy/qtdeploy/internal/mirror"
	"github.com/qtdeploy/qtdeploy/internal/release"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

var errNoMirror = errors.New("no mirror bucket configured")

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if err := newRootCmd(log).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qtdeploy [flags] <config>",
		Short: "Package a Qt application and publish it as a GitHub release",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(log, cmd, args); err != nil {
				log.SetOutput(os.Stderr)
				log.Errorf("ERROR: %v", err)
				os.Exit(1)
			}
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	cmd.Flags().StringP("version", "v", "", "override the application version")
	cmd.Flags().StringP("user", "u", "", "GitHub user name")
	cmd.Flags().StringP("password", "p", "", "GitHub password")
	cmd.Flags().BoolP("draft", "r", false, "mark the release as draft")
	cmd.Flags().BoolP("prerelease", "P", false, "mark the release as prerelease")
	cmd.Flags().StringP("tag", "t", "", "git branch or commit the release tag points to")
	cmd.Flags().Bool("deploy", false, "assemble and compress the application")
	cmd.Flags().Bool("publish", false, "create or update the release and upload the archive")
	cmd.Flags().Bool("unpublish", false, "delete the release")
	cmd.Flags().Bool("mirror", false, "copy the archive to the configured bucket")
	cmd.Flags().Bool("clean", false, "remove the deployment directory and the archive")
	cmd.Flags().BoolP("debug", "d", false, "enable debug output")
	cmd.Flags().SortFlags = false
	return cmd
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func run(log *logrus.Logger, cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		_ = cmd.Usage()
		return config.ErrNoConfigFile
	}
	flags := cmd.Flags()
	overrides := &config.Overrides{
		Version:    must(flags.GetString("version")),
		User:       must(flags.GetString("user")),
		Password:   must(flags.GetString("password")),
		GitRef:     must(flags.GetString("tag")),
		Draft:      must(flags.GetBool("draft")),
		Prerelease: must(flags.GetBool("prerelease")),
		Debug:      must(flags.GetBool("debug")),
	}
	if overrides.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := log.WithField("run_id", uuid.NewString())
	entry.Infof("starting qtdeploy (version=%s)", version)

	env, err := config.NewEnvironment()
	if err != nil {
		return err
	}
	settings, err := config.Load(args[0], overrides, env)
	if err != nil {
		return err
	}
	if _, err := settings.SemVer(); err != nil {
		entry.Warnf("application version %q is not a semantic version", settings.Version)
	}
	entry.Infof("%s %s for %s", settings.Name, settings.Version, settings.Platform)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	assembler, err := deploy.New(entry, settings, layout.Plan(settings))
	if err != nil {
		return err
	}

	if must(flags.GetBool("deploy")) {
		if err := assembler.Deploy(ctx); err != nil {
			return err
		}
	}

	doPublish := must(flags.GetBool("publish"))
	doUnpublish := must(flags.GetBool("unpublish"))
	if doPublish || doUnpublish {
		publisher, err := newPublisher(ctx, entry, settings)
		if err != nil {
			return err
		}
		if doPublish {
			if err := publisher.Publish(ctx, assembler.ArchivePath()); err != nil {
				return err
			}
		}
		if doUnpublish {
			if err := publisher.Unpublish(ctx); err != nil {
				return err
			}
		}
	}

	if must(flags.GetBool("mirror")) {
		if err := mirrorArchive(ctx, entry, settings, assembler.ArchivePath()); err != nil {
			return err
		}
	}

	if must(flags.GetBool("clean")) {
		if err := assembler.Clean(); err != nil {
			return err
		}
	}
	entry.Info("done")
	return nil
}

func newPublisher(ctx context.Context, log *logrus.Entry, settings *config.Settings) (*release.Publisher, error) {
	gh := settings.GitHub
	if !gh.HasCredentials() {
		var err error
		gh, err = config.NewTerminalPrompter().Credentials(gh)
		if err != nil {
			return nil, err
		}
	}
	ghClient, err := release.NewGitHubClient(ctx, log, gh)
	if err != nil {
		return nil, err
	}
	return release.NewPublisher(log, ghClient, gh, settings.Release), nil
}

func mirrorArchive(ctx context.Context, log *logrus.Entry, settings *config.Settings, archivePath string) error {
	if !settings.Mirror.Enabled() {
		return errNoMirror
	}
	s3Client, err := mirror.NewS3Client(ctx, settings.Mirror)
	if err != nil {
		return err
	}
	key, err := mirror.New(log, s3Client, settings.Mirror).Upload(ctx, archivePath, release.Tag(settings.Release.Name))
	if err != nil {
		return err
	}
	log.Infof("mirrored archive to %s/%s", settings.Mirror.Bucket, key)
	return nil
}
