package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/callsheet/internal/client"
	"github.com/alfredjeanlab/callsheet/internal/ui"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	authToken  string
	jsonOutput bool
	user       string

	csClient client.Client
)

func defaultHTTPURL() string {
	if s := os.Getenv("CALLSHEET_HTTP_URL"); s != "" {
		return s
	}
	if s := activeSession().HTTPURL; s != "" {
		return s
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("CALLSHEET_SERVER"); s != "" {
		return s
	}
	if s := activeSession().Server; s != "" {
		return s
	}
	return "localhost:9090"
}

func defaultUser() string {
	if s := os.Getenv("CALLSHEET_USER"); s != "" {
		return s
	}
	return activeSession().User
}

func defaultToken() string {
	if s := os.Getenv("CALLSHEET_TOKEN"); s != "" {
		return s
	}
	return activeSession().Token
}

// connect builds the client for the selected transport.
func connect() (client.Client, error) {
	switch transport {
	case "http":
		return client.NewHTTPClient(httpURL, authToken), nil
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr, authToken)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
}

var rootCmd = &cobra.Command{
	Use:           "cs <command>",
	Short:         "Claim and work call-sheet leads",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		csClient = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if csClient != nil {
			csClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for the service")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&user, "user", defaultUser(), "caller name written to the assignee column")

	rootCmd.AddGroup(
		&cobra.Group{ID: "leads", Title: "Leads:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.OnInitialize(func() {
		if jsonOutput || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
	})
	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Leads
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(passCmd)
	rootCmd.AddCommand(failCmd)
	rootCmd.AddCommand(noAnswerCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(releaseCmd)

	// Views
	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(sheetsCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
