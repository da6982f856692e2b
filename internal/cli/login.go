package cli

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
)

var (
	daemonURL  string
	viewerName string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with a perchd daemon",
	Long: `Requests an access token from the daemon and saves it locally so
later commands can talk to the session API.

Example:
  perchctl login --daemon "http://localhost:8080" --name "Living Room"`,
	Run: func(cmd *cobra.Command, args []string) {
		daemonURL = strings.TrimRight(daemonURL, "/")

		fmt.Printf("Requesting token from %s...\n", daemonURL)

		api := newLoginClient(daemonURL)
		token, err := api.issueToken(viewerName)
		if err != nil {
			log.Fatalf("Fatal: Login failed: %v", err)
		}

		if err := saveCredentials(daemonURL, token.AccessToken, token.RefreshToken); err != nil {
			log.Fatalf("Failed to save configuration file: %v", err)
		}

		fmt.Printf("Logged in as %s (%s). You can now run commands like 'perchctl cameras'.\n",
			token.ViewerName, token.ViewerID)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&daemonURL, "daemon", "http://localhost:8080", "perchd API base URL")
	loginCmd.Flags().StringVarP(&viewerName, "name", "n", "", "Viewer display name (optional)")
}
