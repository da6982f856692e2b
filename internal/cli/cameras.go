package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "List cameras visible to the session",
	Run: func(cmd *cobra.Command, args []string) {
		api := newSessionClient()

		cameras, err := api.cameras()
		if err != nil {
			fmt.Printf("Error fetching cameras: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(cameras)
			return
		}

		if len(cameras) == 0 {
			fmt.Println("No cameras visible. Pair or connect first.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS")
		fmt.Fprintln(w, "--\t----\t------")

		for _, cam := range cameras {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				cam.CameraID,
				cam.Name,
				cam.Status,
			)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(camerasCmd)
}
