package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var pairingsCmd = &cobra.Command{
	Use:   "pairings",
	Short: "List cameras paired with this viewer",
	Run: func(cmd *cobra.Command, args []string) {
		api := newSessionClient()

		pairings, err := api.pairings()
		if err != nil {
			fmt.Printf("Error: could not list pairings: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(pairings)
			return
		}

		if len(pairings) == 0 {
			fmt.Println("No saved pairings. Run 'perchctl pair pin <code>' to pair a camera.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CAMERA\tNAME\tMETHOD\tSAVED")
		fmt.Fprintln(w, "------\t----\t------\t-----")
		for _, p := range pairings {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				p.CameraID, p.CameraName, p.Method, p.SavedAt.Format(time.RFC3339))
		}
		w.Flush()
	},
}

var pairingsForgetCmd = &cobra.Command{
	Use:     "forget <cameraId>",
	Short:   "Remove a saved pairing",
	Example: `  perchctl pairings forget cam_front_door`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		api := newSessionClient()

		if err := api.forgetPairing(args[0]); err != nil {
			fmt.Printf("Error: could not forget pairing: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Forgot pairing for %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(pairingsCmd)

	pairingsCmd.AddCommand(pairingsForgetCmd)
}
