package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/freightsettle/internal/adapter/http/dto"
)

type options struct {
	baseURL string
	timeout time.Duration
	asJSON  bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "freightsettle-cli",
		Short:         "freightsettle operator CLI",
		Long:          `Inspect the settlement scheduler and trigger jobs through its admin API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the admin API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Print raw JSON")

	rootCmd.AddCommand(statusCmd(opts), jobsCmd(opts))
	return rootCmd
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler state and last job runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status dto.SchedulerResponse
			if err := doRequest(opts, http.MethodGet, "/api/v1/scheduler", &status); err != nil {
				return err
			}

			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), status)
			}
			printStatus(cmd.OutOrStdout(), &status)
			return nil
		},
	}
}

func jobsCmd(opts *options) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Job operations",
	}

	var async bool
	runCmd := &cobra.Command{
		Use:   "run <hourly|daily>",
		Short: "Run a job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/jobs/" + args[0] + "/run"
			if async {
				path += "?async=true"
			}

			var result dto.JobRunResponse
			if err := doRequest(opts, http.MethodPost, path, &result); err != nil {
				return err
			}

			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "job %s: %s\n", result.Job, result.Status)
			if result.LastRun != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s took %dms\n", result.LastRun.RunID, result.LastRun.DurationMS)
			}
			return nil
		},
	}
	runCmd.Flags().BoolVar(&async, "async", false, "Return as soon as the run is accepted")

	jobsCmd.AddCommand(runCmd)
	return jobsCmd
}

func doRequest(opts *options, method, path string, into any) error {
	req, err := http.NewRequest(method, strings.TrimRight(opts.baseURL, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	client := &http.Client{Timeout: opts.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr dto.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Message != "" {
				return fmt.Errorf("%s (status %d): %s", apiErr.Error, resp.StatusCode, apiErr.Message)
			}
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func printStatus(out io.Writer, status *dto.SchedulerResponse) {
	fmt.Fprintf(out, "scheduler: %s\n\n", status.State)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tSCHEDULE\tRUNNING\tLAST RUN\tDURATION\tRESULT")
	for _, j := range status.Jobs {
		lastRun, duration, result := "-", "-", "-"
		if j.LastRun != nil {
			lastRun = j.LastRun.StartedAt.Format(time.RFC3339)
			duration = (time.Duration(j.LastRun.DurationMS) * time.Millisecond).String()
			switch {
			case j.LastRun.Error != "":
				result = "error: " + truncate(j.LastRun.Error, 60)
			case j.LastRun.Skipped != "":
				result = "skipped: " + j.LastRun.Skipped
			default:
				result = "ok"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\t%s\n", j.Name, j.Schedule, j.Running, lastRun, duration, result)
	}
	_ = w.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
