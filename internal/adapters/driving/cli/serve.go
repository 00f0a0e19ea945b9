package cli

import (
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the REST API for uploading, listing, updating and deleting
support documents and for answering questions. Backing services are
re-probed in the background and the server stops cleanly on SIGINT/SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := appFactory(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort > 0 {
		a.Config.Server.Port = servePort
	}

	monitor := a.NewMonitor()
	monitor.Start(ctx)
	defer monitor.Stop()

	return a.NewServer(version).Start(ctx)
}
