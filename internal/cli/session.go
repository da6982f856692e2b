package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session state",
	Run: func(cmd *cobra.Command, args []string) {
		api := newSessionClient()

		session, err := api.state()
		if err != nil {
			fmt.Printf("Error: could not fetch session state: %v\n", err)
			os.Exit(1)
		}

		printSession(session)
	},
}

var connectCmd = &cobra.Command{
	Use:     "connect <cameraId>",
	Short:   "Connect to a previously paired camera",
	Example: `  perchctl connect cam_front_door`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		api := newSessionClient()

		session, err := api.connect(args[0])
		if err != nil {
			fmt.Printf("Error: could not connect: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Connected.")
		printSession(session)
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Tear down the session and return to idle",
	Run: func(cmd *cobra.Command, args []string) {
		api := newSessionClient()

		session, err := api.disconnect()
		if err != nil {
			fmt.Printf("Error: could not disconnect: %v\n", err)
			os.Exit(1)
		}

		printSession(session)
	},
}

var reconnectCmd = &cobra.Command{
	Use:   "reconnect",
	Short: "Force an immediate reconnect of the control channel",
	Run: func(cmd *cobra.Command, args []string) {
		api := newSessionClient()

		session, err := api.reconnect()
		if err != nil {
			fmt.Printf("Error: could not reconnect: %v\n", err)
			os.Exit(1)
		}

		printSession(session)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(reconnectCmd)
}
