// Package cli implements the auditctl commands.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"invoice-auditor/internal/adapters/web"
	"invoice-auditor/internal/ai"
	"invoice-auditor/internal/config"
	"invoice-auditor/internal/core"

	"github.com/spf13/cobra"
)

// Version is the auditctl version string.
const Version = "0.1.0"

// NewRootCommand builds the auditctl command tree. Results are written to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "auditctl",
		Short:         "Invoice audit tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.AddCommand(
		auditCommand(),
		extractCommand(),
		tokenCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "auditctl version %s\n", Version)
			},
		},
	)
	return root
}

func auditCommand() *cobra.Command {
	var (
		invoicePath string
		poPath      string
		configPath  string
		callerID    string
		today       string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit an extracted invoice offline",
		Long: `Runs the validation pipeline on an extracted invoice JSON file,
optionally against a purchase order JSON file, and prints the audit result.
No invoice history is consulted, so duplicate detection never matches.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = os.Getenv("AUDIT_CONFIG_FILE")
			}
			cfg, err := config.LoadAuditConfig(configPath)
			if err != nil {
				return err
			}

			var invoice core.ExtractedInvoice
			if err := readJSONFile(invoicePath, &invoice); err != nil {
				return err
			}
			var po *core.PurchaseOrder
			if poPath != "" {
				po = &core.PurchaseOrder{}
				if err := readJSONFile(poPath, po); err != nil {
					return err
				}
			}

			opts := []core.AuditorOption{}
			if verbose {
				opts = append(opts, core.WithLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))))
			}
			if today != "" {
				now, err := time.Parse(core.DateLayout, today)
				if err != nil {
					return fmt.Errorf("invalid --today %q: %w", today, err)
				}
				opts = append(opts, core.WithClock(func() time.Time { return now }))
			}

			auditor := core.NewAuditor(cfg, core.NoHistory{}, opts...)
			result, err := auditor.RunValidation(cmd.Context(), invoice, callerID, po)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&invoicePath, "invoice", "", "Extracted invoice JSON file")
	cmd.Flags().StringVar(&poPath, "po", "", "Purchase order JSON file")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Audit thresholds YAML file (default $AUDIT_CONFIG_FILE)")
	cmd.Flags().StringVar(&callerID, "caller", "local", "Caller id the audit runs for")
	cmd.Flags().StringVar(&today, "today", "", "Override the current date (YYYY-MM-DD)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log degraded stages to stderr")
	_ = cmd.MarkFlagRequired("invoice")
	return cmd
}

func extractCommand() *cobra.Command {
	var (
		textPath string
		model    string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract invoice fields from document text with OpenAI",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey := os.Getenv("OPENAI_API_KEY")
			if apiKey == "" {
				return errors.New("OPENAI_API_KEY is not set")
			}
			if model == "" {
				model = os.Getenv("OPENAI_MODEL")
			}
			text, err := os.ReadFile(textPath)
			if err != nil {
				return fmt.Errorf("failed to read document text: %w", err)
			}

			invoice, err := ai.NewExtractor(apiKey, model).ExtractInvoice(cmd.Context(), string(text))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), invoice)
		},
	}

	cmd.Flags().StringVar(&textPath, "text", "", "Plain-text invoice document")
	cmd.Flags().StringVar(&model, "model", "", "OpenAI model (default $OPENAI_MODEL or gpt-4o-mini)")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func tokenCommand() *cobra.Command {
	var (
		callerID string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			token, err := web.SignToken(secret, callerID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&callerID, "caller", "", "Caller id to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
