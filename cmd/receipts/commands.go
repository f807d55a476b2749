package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/async"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/entity"
	"github.com/joseph-ayodele/receipt-extractor/internal/export"
	"github.com/joseph-ayodele/receipt-extractor/internal/ingest"
	"github.com/joseph-ayodele/receipt-extractor/internal/preview"
	repo "github.com/joseph-ayodele/receipt-extractor/internal/repository"
)

func newProcessCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "process <file...>",
		Short: "Upload receipt files, extract them and store the transactions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.ingestService(ctx)
			if err != nil {
				return err
			}

			var failed int
			for _, path := range args {
				res, err := uploadFile(cmd, svc, path, flags.user())
				if err != nil {
					printError("%s: %v\n", path, err)
					failed++
					continue
				}
				if err := printResult(cmd, a, res, asJSON); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be processed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the extracted record as JSON")
	return cmd
}

func uploadFile(cmd *cobra.Command, svc *ingest.Service, path string, user *int64) (ingest.IngestionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.IngestionResult{}, err
	}
	defer func() { _ = f.Close() }()
	return svc.Upload(cmd.Context(), f, filepath.Base(path), user)
}

func printResult(cmd *cobra.Command, a *app, res ingest.IngestionResult, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"transaction_id": res.TransactionID,
			"succeeded":      res.Succeeded,
			"file_path":      res.StoredPath,
			"data":           res.Record,
		})
	}
	tx, err := a.txs.Get(cmd.Context(), res.TransactionID)
	if err != nil {
		return err
	}
	if err := preview.Preview(tx).Render(out); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out)
	return err
}

func newIngestDirCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest-dir <dir>",
		Short: "Extract every supported receipt under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.ingestService(ctx)
			if err != nil {
				return err
			}
			results, stats, err := svc.IngestDirectory(ctx, args[0], flags.user())
			for _, r := range results {
				switch {
				case r.Err != "" && r.TransactionID == 0:
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %s: %s\n", r.SourcePath, r.Err)
				case !r.Succeeded:
					fmt.Fprintf(cmd.OutOrStdout(), "FLAG  %s -> #%d (%s)\n", r.SourcePath, r.TransactionID, preview.ReviewBadge)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "OK    %s -> #%d %s %.2f\n", r.SourcePath, r.TransactionID, r.Record.Vendor, r.Record.Total)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d matched=%d succeeded=%d fallback=%d failed=%d\n",
				stats.Scanned, stats.Matched, stats.Succeeded, stats.Fallback, stats.Failed)
			return err
		},
	}
}

func newWatchCmd(flags *rootFlags) *cobra.Command {
	var (
		initial  bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir...>",
		Short: "Watch directories and extract receipts as they appear",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.ingestService(ctx)
			if err != nil {
				return err
			}
			q := async.NewProcessorQueue(svc, a.logger,
				async.WithWorkers(a.cfg.Workers.Count),
				async.WithQueueSize(a.cfg.Workers.QueueSize),
				async.WithProcessTimeout(2*a.cfg.LLM.RequestTimeout()),
				async.WithResultFunc(func(job async.Job, res ingest.IngestionResult, err error) {
					if err != nil {
						printError("%s: %v\n", job.Path, err)
						return
					}
					tx, gerr := a.txs.Get(ctx, res.TransactionID)
					if gerr != nil {
						return
					}
					fmt.Fprintln(cmd.OutOrStdout(), preview.Preview(tx).Summary())
				}),
			)

			events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Roots:       args,
				InitialScan: initial,
				Debounce:    debounce,
			}, a.logger)
			if err != nil {
				q.Shutdown(ctx)
				return err
			}
			a.logger.Info("watching for receipts", "roots", args)

		loop:
			for {
				select {
				case path, ok := <-events:
					if !ok {
						break loop
					}
					if err := q.Enqueue(ctx, async.NewJob(path, flags.user())); err != nil {
						a.logger.Warn("enqueue failed", "path", path, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					a.logger.Warn("watch error", "error", err)
				case <-ctx.Done():
					break loop
				}
			}

			shutdownCtx, cancel := contextWithTimeout(2 * a.cfg.LLM.RequestTimeout())
			defer cancel()
			q.Shutdown(shutdownCtx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&initial, "initial-scan", false, "also process files already present")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "coalesce bursts of file events")
	return cmd
}

func newListCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			var txs []*entity.Transaction
			if u := flags.user(); u != nil {
				txs, err = a.txs.ListByUser(ctx, *u)
			} else {
				txs, err = a.txs.List(ctx)
			}
			if err != nil {
				return err
			}
			if asJSON {
				if txs == nil {
					txs = []*entity.Transaction{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(txs)
			}
			for _, tx := range txs {
				fmt.Fprintln(cmd.OutOrStdout(), preview.Preview(tx).Summary())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.InvalidInputError("invalid transaction id %q", s)
	}
	return id, nil
}

func newShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			tx, err := a.txs.Get(ctx, id)
			if err != nil {
				return err
			}
			return preview.Preview(tx).Render(cmd.OutOrStdout())
		},
	}
}

func newReviewCmd(flags *rootFlags) *cobra.Command {
	var (
		vendor, date, category, payment string
		subtotal, tax, total            float64
		unflag                          bool
	)
	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Correct a stored transaction and optionally clear its review flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var patch repo.TransactionPatch
			fs := cmd.Flags()
			if fs.Changed("vendor") {
				patch.Vendor = &vendor
			}
			if fs.Changed("date") {
				patch.Date = &date
			}
			if fs.Changed("category") {
				c, _ := constants.Canonicalize(category)
				s := string(c)
				patch.Category = &s
			}
			if fs.Changed("payment-method") {
				patch.PaymentMethod = &payment
			}
			if fs.Changed("subtotal") {
				patch.Subtotal = &subtotal
			}
			if fs.Changed("tax") {
				patch.Tax = &tax
			}
			if fs.Changed("total") {
				patch.Amount = &total
			}
			if unflag {
				f := false
				patch.Flagged = &f
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			tx, err := a.txs.Update(ctx, id, patch)
			if err != nil {
				return err
			}
			return preview.Preview(tx).Render(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor name")
	cmd.Flags().StringVar(&date, "date", "", "receipt date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "category: "+strings.Join(constants.AsStringSlice(), ", "))
	cmd.Flags().StringVar(&payment, "payment-method", "", "payment method")
	cmd.Flags().Float64Var(&subtotal, "subtotal", 0, "subtotal")
	cmd.Flags().Float64Var(&tax, "tax", 0, "tax")
	cmd.Flags().Float64Var(&total, "total", 0, "total paid")
	cmd.Flags().BoolVar(&unflag, "unflag", false, "mark as reviewed")
	return cmd
}

func newDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.txs.Delete(ctx, id); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return fmt.Errorf("transaction #%d does not exist", id)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted #%d\n", id)
			return nil
		},
	}
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var (
		out, fromStr, toStr string
		flaggedOnly         bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored transactions to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := export.Filter{UserID: flags.user(), FlaggedOnly: flaggedOnly}
			for _, d := range []struct {
				raw string
				dst **time.Time
				arg string
			}{{fromStr, &filter.From, "--from"}, {toStr, &filter.To, "--to"}} {
				if d.raw == "" {
					continue
				}
				parsed, err := time.Parse(constants.DateLayout, d.raw)
				if err != nil {
					return common.InvalidInputError("invalid %s date format, use YYYY-MM-DD: %v", d.arg, err)
				}
				*d.dst = &parsed
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.exportService().ExportXLSX(ctx, filter)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "receipts.xlsx", "output XLSX path")
	cmd.Flags().StringVar(&fromStr, "from", "", "from date YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "to date YYYY-MM-DD")
	cmd.Flags().BoolVar(&flaggedOnly, "flagged", false, "only transactions that need review")
	return cmd
}
