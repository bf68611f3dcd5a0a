package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"jizhang/internal/log"
	"jizhang/internal/probe"
	gsheet "jizhang/internal/sheets/google"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe [credentials.json]",
	Short: "Check the service account credentials and spreadsheet access",
	Long: `Inspect the service account key, fetch an access token and, when a
spreadsheet id is configured, open the spreadsheet. Without an argument the
configured GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func probeCredentials(args []string) ([]byte, error) {
	switch {
	case len(args) == 1:
		return os.ReadFile(args[0])
	case appConfig.GoogleServiceAccountJSON != "":
		return []byte(appConfig.GoogleServiceAccountJSON), nil
	case appConfig.GoogleServiceAccountFile != "":
		return os.ReadFile(appConfig.GoogleServiceAccountFile)
	default:
		return nil, errors.New("no credentials given and none configured")
	}
}

func runProbe(cmd *cobra.Command, args []string) error {
	creds, err := probeCredentials(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	p := probe.New()
	p.Logger = appLogger.WithComponent(log.ComponentProbe).Slog()
	report := p.Run(ctx, creds)

	if report.OK() && appConfig.GoogleSpreadsheetID != "" {
		_, err := gsheet.Open(ctx, gsheet.Config{SpreadsheetID: appConfig.GoogleSpreadsheetID, CredentialsJSON: creds})
		if err != nil {
			report.Add("spreadsheet", probe.LevelFail, err.Error())
			report.Diagnosis = "token works but the spreadsheet is unreachable; share it with " + report.ClientEmail
		} else {
			report.Add("spreadsheet", probe.LevelOK, appConfig.GoogleSpreadsheetID)
		}
	}

	printReport(cmd.OutOrStdout(), report)
	if !report.OK() {
		return errors.New("credential check failed")
	}
	return nil
}

func printReport(w io.Writer, r *probe.Report) {
	marks := map[probe.Level]string{probe.LevelOK: "ok  ", probe.LevelWarn: "warn", probe.LevelFail: "FAIL"}
	for _, c := range r.Checks {
		fmt.Fprintf(w, "[%s] %-20s %s\n", marks[c.Level], c.Name, c.Detail)
	}
	if r.Diagnosis != "" {
		fmt.Fprintf(w, "\n%s\n", r.Diagnosis)
	}
}
