package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dockeep/internal/app"
	"dockeep/internal/config"
	"dockeep/internal/docstore"
	"dockeep/internal/encryption"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, docstore.ErrCancelled) {
			// Cancellation is not a failure: nothing happened.
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
func newApp(ctx context.Context) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(ctx, cfg, promptForPath)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// promptForPath asks for a save path on the terminal. A declined
// prompt (empty input, or no terminal attached) reports cancellation.
func promptForPath(suggested string) (string, bool) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", false
	}

	if suggested != "" {
		fmt.Fprintf(os.Stderr, "Save path [%s]: ", suggested)
	} else {
		fmt.Fprint(os.Stderr, "File path: ")
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	return line, true
}

// readContent reads document content from the --file flag or stdin.
func readContent(file string) ([]byte, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading content file: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading content from stdin: %w", err)
	}
	return data, nil
}

var rootCmd = &cobra.Command{
	Use:   "dockeep",
	Short: "Document persistence with version history and crash recovery",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Documents Dir: %s\n", cfg.DocumentsDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Recovery:      %s (%s, retention %dd)\n", cfg.Recovery.Type, cfg.Recovery.Dir, cfg.Recovery.RetentionDays)
		fmt.Printf("Encryption:    %s\n", cfg.Encryption.Type)
		return nil
	},
}

var configKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the snapshot encryption key",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		enc := encryption.NewAgeEncryptor(cfg.Encryption.IdentityPath)
		if err := enc.Setup(); err != nil {
			return fmt.Errorf("generating key: %w", err)
		}
		fmt.Printf("Encryption key written to %s\n", cfg.Encryption.IdentityPath)
		fmt.Println("Set encryption type to \"age\" in the config to enable it.")
		return nil
	},
}

// save command
var saveContentFile string

var saveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Save document content to a file, recording a version",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		raw, err := readContent(saveContentFile)
		if err != nil {
			return err
		}

		path := ""
		if len(args) > 0 {
			path = args[0]
		}

		doc, err := a.SaveDocument(ctx, raw, path)
		if err != nil {
			if errors.Is(err, docstore.ErrCancelled) {
				return docstore.ErrCancelled
			}
			return fmt.Errorf("saving document: %w", err)
		}

		fmt.Printf("Saved %q (%s) to %s, %d version(s)\n", doc.Title, doc.ID, doc.FilePath, len(doc.Versions))
		return nil
	},
}

// load command
var loadCmd = &cobra.Command{
	Use:   "load <path>",
	Short: "Load a document and show its state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.OpenDocument(ctx, args[0])
		if err != nil {
			return fmt.Errorf("loading document: %w", err)
		}

		fmt.Printf("%s\t%q\t%d version(s)\tupdated %s\n", doc.ID, doc.Title, len(doc.Versions), doc.UpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Println(string(doc.Content))
		return nil
	},
}

// edit command
var editContentFile string

var editCmd = &cobra.Command{
	Use:   "edit <path>",
	Short: "Update a document's content without saving it",
	Long: `Update a document's content from stdin or --file. The edit is not
written to the document file; it is held as unsaved changes, protected
by a recovery snapshot until the next save.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		raw, err := readContent(editContentFile)
		if err != nil {
			return err
		}

		doc, err := a.EditDocument(ctx, args[0], raw)
		if err != nil {
			return fmt.Errorf("editing document: %w", err)
		}

		fmt.Printf("Updated %q (%s) with unsaved changes; save to commit\n", doc.Title, doc.ID)
		return nil
	},
}

// versions command
var versionsCmd = &cobra.Command{
	Use:   "versions <path>",
	Short: "List the version history of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.OpenDocument(ctx, args[0])
		if err != nil {
			return fmt.Errorf("loading document: %w", err)
		}

		versions, err := a.Versions(doc.ID)
		if err != nil {
			return err
		}
		for i, v := range versions {
			kind := "manual"
			if v.IsAutoSave {
				kind = "auto"
			}
			if i == 0 {
				kind = "baseline"
			}
			fmt.Printf("%d\t%s\t%s\t%d bytes\t%s\n", i, v.ID, kind, v.Size, v.Timestamp.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore <path> <version-id>",
	Short: "Restore an older version as the current content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.OpenDocument(ctx, args[0])
		if err != nil {
			return fmt.Errorf("loading document: %w", err)
		}

		doc, err = a.RestoreVersion(ctx, doc.ID, args[1])
		if err != nil {
			return fmt.Errorf("restoring version: %w", err)
		}
		fmt.Printf("Restored version %s of %q\n", args[1], doc.Title)
		return nil
	},
}

// docs command
var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List all known documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.ListDocuments(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s\t%q\t%s\tupdated %s\n", e.ID, e.Title, e.FilePath, e.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// recovery commands
var recoveryCmd = &cobra.Command{
	Use:   "recovery",
	Short: "Manage crash-recovery snapshots",
}

var recoveryListInfo bool

var recoveryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents with recovery snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if recoveryListInfo {
			infos, err := a.ListSnapshots(ctx)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("No recovery data available")
				return nil
			}
			for _, info := range infos {
				fmt.Printf("%s\t%d bytes\t%s\n", info.DocumentID, info.Size, info.ModifiedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		}

		docs, err := a.ListRecoverable(ctx)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("No recovery data available")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%s\t%q\t%d version(s)\tupdated %s\n", d.ID, d.Title, len(d.Versions), d.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover <doc-id>",
	Short: "Recover unsaved state from a crash-recovery snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.Recover(ctx, args[0])
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				fmt.Println("No recovery data available")
				return nil
			}
			return fmt.Errorf("recovering document: %w", err)
		}

		fmt.Printf("Recovered %q (%s) with unsaved changes; save to confirm\n", doc.Title, doc.ID)
		fmt.Println(string(doc.Content))
		return nil
	},
}

// delete command
var deletePath string

var deleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Delete a document, its snapshot and its catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteDocument(ctx, args[0], deletePath); err != nil {
			return fmt.Errorf("deleting document: %w", err)
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run [path...]",
	Short: "Open documents and run the auto-save scheduler until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, path := range args {
			doc, err := a.OpenDocument(ctx, path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			fmt.Printf("Watching %q (%s)\n", doc.Title, doc.ID)
		}

		a.StartAutoSave(ctx)
		<-ctx.Done()
		return nil
	},
}

func init() {
	saveCmd.Flags().StringVarP(&saveContentFile, "file", "f", "", "read content from this file instead of stdin")
	editCmd.Flags().StringVarP(&editContentFile, "file", "f", "", "read content from this file instead of stdin")
	deleteCmd.Flags().StringVar(&deletePath, "path", "", "path of the document's primary file")
	recoveryListCmd.Flags().BoolVar(&recoveryListInfo, "info", false, "show snapshot metadata without decoding the snapshots")

	configCmd.AddCommand(configInitCmd, configListCmd, configKeygenCmd)
	recoveryCmd.AddCommand(recoveryListCmd)
	rootCmd.AddCommand(configCmd, saveCmd, loadCmd, editCmd, versionsCmd, restoreCmd, docsCmd, recoveryCmd, recoverCmd, deleteCmd, runCmd)
}
