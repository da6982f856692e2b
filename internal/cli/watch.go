package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch <cameraId>",
	Short:   "Start watching a connected camera",
	Example: `  perchctl watch cam_front_door`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		api := newSessionClient()

		session, err := api.watch(args[0])
		if err != nil {
			fmt.Printf("Error: could not start watching: %v\n", err)
			os.Exit(1)
		}

		printSession(session)
	},
}

var watchStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the active watch",
	Run: func(cmd *cobra.Command, args []string) {
		api := newSessionClient()

		session, err := api.watchStop()
		if err != nil {
			fmt.Printf("Error: could not stop watching: %v\n", err)
			os.Exit(1)
		}

		printSession(session)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.AddCommand(watchStopCmd)
}
