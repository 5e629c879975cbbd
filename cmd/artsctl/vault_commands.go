package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/artsengine/internal/application"
	"github.com/ericfisherdev/artsengine/internal/domain/model"
)

func newVaultCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage stored API keys",
	}
	cmd.AddCommand(
		newVaultShowCommand(ctx),
		newVaultAddCommand(ctx),
		newVaultEditCommand(ctx),
		newVaultClearCommand(ctx),
		newVaultUndoCommand(ctx),
		newVaultExportCommand(ctx),
	)
	return cmd
}

func newVaultShowCommand(ctx *commandContext) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withVault(cmd.Context(), func(v *application.Vault) error {
				creds, err := v.Load(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(creds) == 0 {
					fmt.Fprintln(out, "No keys stored.")
					return nil
				}

				rows := make([][]string, 0, len(creds))
				for _, label := range creds.Labels() {
					secret := model.MaskSecret(creds[label])
					if reveal {
						secret = creds[label]
					}
					rows = append(rows, []string{label, secret})
				}
				fmt.Fprintln(out, renderTable([]string{"Label", "Key"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print keys in clear")
	return cmd
}

func newVaultAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add LABEL [KEY]",
		Short: "Store a key; reads it from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := ""
			if len(args) == 2 {
				secret = args[1]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read key: %w", err)
				}
				secret = line
			}

			return ctx.withVault(cmd.Context(), func(v *application.Vault) error {
				label, err := v.Add(cmd.Context(), args[0], secret)
				if err != nil {
					return err
				}
				if label == "" {
					return errors.New("label and key must not be blank")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", label)
				return nil
			})
		},
	}
}

func newVaultEditCommand(ctx *commandContext) *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit all keys as YAML in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withVault(cmd.Context(), func(v *application.Vault) error {
				var text string
				if fromFile != "" {
					data, err := os.ReadFile(fromFile)
					if err != nil {
						return fmt.Errorf("read %s: %w", fromFile, err)
					}
					text = string(data)
				} else {
					current, err := v.View(cmd.Context())
					if err != nil {
						return err
					}
					edited, err := editInEditor(current)
					if err != nil {
						return err
					}
					if edited == current {
						fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
						return nil
					}
					text = edited
				}

				if err := v.BulkReplace(cmd.Context(), text); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Keys saved.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&fromFile, "from", "", "Replace the vault from a YAML file instead of opening an editor")
	return cmd
}

// editInEditor writes text to a private temp file, opens $EDITOR on it and
// returns the saved contents.
func editInEditor(text string) (string, error) {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}

	dir, err := os.MkdirTemp("", "artsctl-vault-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "vault.yaml")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}

	parts := strings.Fields(editor)
	c := exec.Command(parts[0], append(parts[1:], path)...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("run editor %s: %w", editor, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read edited file: %w", err)
	}
	return string(data), nil
}

func newVaultClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored key (undo within five minutes)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				ok, err := confirm(cmd, "Remove every stored key? [y/N] ")
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("aborted")
				}
			}
			return ctx.withVault(cmd.Context(), func(v *application.Vault) error {
				if err := v.ClearAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All keys removed. Run `artsctl vault undo` within five minutes to restore them.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// confirm asks on the command's output and reads one line of input. Without
// a terminal on stdin it refuses rather than guessing.
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !isTerminal(f) {
		return false, errors.New("refusing to clear without --yes when stdin is not a terminal")
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func newVaultUndoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Restore the keys replaced or cleared by the last change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withVault(cmd.Context(), func(v *application.Vault) error {
				restored, err := v.Undo(cmd.Context())
				if err != nil {
					return err
				}
				if !restored {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to undo.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Keys restored.")
				return nil
			})
		},
	}
}

func newVaultExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print all keys as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withVault(cmd.Context(), func(v *application.Vault) error {
				view, err := v.View(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
}
