// cmd/grove/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"grove/internal/config"
	"grove/internal/errors"
	"grove/internal/logging"
	"grove/internal/repo"
	"grove/internal/watch"
	"grove/shared/utils"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "grove",
	Short: "Grove is a snapshot-based version control system",
	Long: `Grove is a local version control system built on a persistent search tree.
Every change produces an immutable snapshot that can be queried independently,
so checking out any point in history is a pointer swap, not a copy.`,
}

func init() {
	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new Grove repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			cfg := config.Default()
			if err := cfg.Save(config.Path()); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Println("Initialized empty Grove repository in", filepath.Join(dir, ".grove"))
			return nil
		},
	}

	var putCmd = &cobra.Command{
		Use:   "put [files...]",
		Short: "Record the current content of files as a new snapshot",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				info, err := r.Put(filepath.ToSlash(path), content)
				if err != nil {
					return fmt.Errorf("recording %s: %w", path, err)
				}
				fmt.Printf("%s -> %s\n", path, info.ID)
			}
			return nil
		},
	}

	var rmCmd = &cobra.Command{
		Use:   "rm [names...]",
		Short: "Mark files as deleted in a new snapshot",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			for _, name := range args {
				info, err := r.Remove(name)
				if err != nil {
					return fmt.Errorf("removing %s: %w", name, err)
				}
				fmt.Printf("deleted %s -> %s\n", name, info.ID)
			}
			return nil
		},
	}

	var addCmd = &cobra.Command{
		Use:   "add [names...]",
		Short: "Stage files for the next commit",
		Long:  `Stage files for the next commit. Use '.' to stage every tracked file.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			var staged []string
			if len(args) == 1 && args[0] == "." {
				staged = r.StageAll()
			} else {
				staged = r.Stage(args)
			}

			if len(staged) == 0 {
				fmt.Println("Nothing staged (names not found in the current snapshot)")
				return nil
			}
			fmt.Printf("Staged %d file(s)\n", len(staged))
			return nil
		},
	}

	var unstageCmd = &cobra.Command{
		Use:   "unstage [names...]",
		Short: "Remove files from the staging set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			r.Unstage(args)
			fmt.Println("Unstaged")
			return nil
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Publish a snapshot from the staged files",
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			info, err := r.Commit(message)
			if err != nil {
				if errors.IsNoOp(err) {
					fmt.Println("No changes staged for commit")
					return nil
				}
				return fmt.Errorf("committing: %w", err)
			}

			fmt.Printf("[%s %s] %s (%d files)\n",
				r.CurrentBranch(), utils.ShortID(info.ID), info.Message, len(info.Files))
			return nil
		},
	}
	commitCmd.Flags().StringP("message", "m", "", "Commit message")

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the staging state of the working snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			st := r.Status()
			fmt.Printf("On branch %s\n", st.Branch)

			if st.Clean {
				fmt.Println("Working tree clean")
				return nil
			}

			green := color.New(color.FgGreen).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()

			if len(st.Staged) > 0 {
				fmt.Println("\nChanges to be committed:")
				for _, name := range st.Staged {
					fmt.Printf("\t%s %s\n", green("+"), name)
				}
			}
			if len(st.Unstaged) > 0 {
				fmt.Println("\nFiles not staged for commit:")
				fmt.Println("  (use \"grove add <file>...\" to include in the next commit)")
				for _, name := range st.Unstaged {
					fmt.Printf("\t%s %s\n", yellow("-"), name)
				}
			}
			return nil
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show version history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			cyan := color.New(color.FgCyan).SprintFunc()
			history := r.History()
			for i := len(history) - 1; i >= 0; i-- {
				info := history[i]
				fmt.Printf("%s  %s  %s  %s\n",
					cyan(info.ID),
					info.CreatedAt.Format("2006-01-02 15:04"),
					info.Author,
					info.Message,
				)
			}
			return nil
		},
	}

	var catCmd = &cobra.Command{
		Use:   "cat [name]",
		Short: "Print a file's content, optionally at a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versionID, _ := cmd.Flags().GetString("version")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			rec, err := r.Get(args[0], versionID)
			if err != nil {
				return err
			}
			os.Stdout.Write(rec.Content)
			return nil
		},
	}
	catCmd.Flags().StringP("version", "v", "", "Version id to read from")

	var historyCmd = &cobra.Command{
		Use:   "history [name]",
		Short: "Show every version containing a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			versions := r.FileHistory(args[0])
			if len(versions) == 0 {
				fmt.Printf("No history for %s\n", args[0])
				return nil
			}
			for _, fv := range versions {
				fmt.Printf("%s  %s  %s  %s\n",
					fv.Info.ID,
					fv.Record.CreatedAt.Format("2006-01-02 15:04"),
					fv.Record.Author,
					utils.ShortID(fv.Record.Fingerprint),
				)
			}
			return nil
		},
	}

	var branchCmd = &cobra.Command{
		Use:   "branch",
		Short: "List, create, or delete branches",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			green := color.New(color.FgGreen).SprintFunc()
			for _, b := range r.ListBranches() {
				if b.Current {
					fmt.Printf("* %s\n", green(b.Name))
				} else {
					fmt.Printf("  %s\n", b.Name)
				}
			}
			return nil
		},
	}

	var branchCreateCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Create a branch at the working version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.CreateBranch(args[0]); err != nil {
				return err
			}
			fmt.Printf("Created branch %s\n", args[0])
			return nil
		},
	}

	var branchDeleteCmd = &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.DeleteBranch(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted branch %s\n", args[0])
			return nil
		},
	}

	var checkoutCmd = &cobra.Command{
		Use:   "checkout [branch|version]",
		Short: "Switch to a branch or version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.Checkout(args[0]); err != nil {
				return err
			}
			if r.CurrentBranch() == args[0] {
				fmt.Printf("Switched to branch '%s'\n", args[0])
			} else {
				fmt.Printf("HEAD is now at %s\n", args[0])
			}
			return nil
		},
	}

	var mergeCmd = &cobra.Command{
		Use:   "merge [branch]",
		Short: "Merge a branch into the current one (source wins on difference)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			result, err := r.Merge(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Merged '%s' into %s: %d file(s) updated -> %s\n",
				args[0], r.CurrentBranch(), result.Changed, result.Version.ID)
			return nil
		},
	}

	var remoteCmd = &cobra.Command{
		Use:   "remote [url]",
		Short: "Show or set the remote descriptor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if len(args) == 0 {
				remote, ok := r.Remote()
				if !ok {
					fmt.Println("No remote repository configured")
					return nil
				}
				fmt.Println(remote.URL)
				return nil
			}

			remote, err := r.SetRemote(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Set remote repository to: %s\n", remote.URL)
			return nil
		},
	}

	var fetchCmd = &cobra.Command{
		Use:   "fetch",
		Short: "Fetch from the remote (simulated)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			msg, err := r.Fetch()
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}

	var pullCmd = &cobra.Command{
		Use:   "pull",
		Short: "Fetch and merge the tracking branch (simulated)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			fetchMsg, result, err := r.Pull()
			if err != nil {
				return err
			}
			fmt.Println(fetchMsg)
			fmt.Printf("%d file(s) updated\n", result.Changed)
			return nil
		},
	}

	var pushCmd = &cobra.Command{
		Use:   "push",
		Short: "Push to the remote (simulated)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			msg, err := r.Push()
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}

	var authorCmd = &cobra.Command{
		Use:   "author [name]",
		Short: "Show or set the author recorded on new snapshots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if len(args) == 0 {
				fmt.Println(r.Author())
				return nil
			}
			if err := r.SetAuthor(args[0]); err != nil {
				return err
			}

			cfg, err := config.Load(config.Path())
			if err == nil {
				cfg.Author = args[0]
				if err := cfg.Save(config.Path()); err != nil {
					return fmt.Errorf("saving config: %w", err)
				}
			}
			fmt.Printf("Author set to %s\n", args[0])
			return nil
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch the working directory and record changes automatically",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			logger, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}

			w, err := watch.New(r, cwd, logger)
			if err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println("Watching for changes (Ctrl+C to stop)")
			if err := w.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}

	branchCmd.AddCommand(branchCreateCmd)
	branchCmd.AddCommand(branchDeleteCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(unstageCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(authorCmd)
	rootCmd.AddCommand(watchCmd)
}

func openRepo() (*repo.Repository, error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	r, err := repo.Open(cfg.DataDir, cfg.Author, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return r, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
