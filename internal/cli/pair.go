package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Parent Command
var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair with a camera",
	Long:  `Pair using a PIN shown on the camera or a scanned QR payload.`,
}

var pairPinCmd = &cobra.Command{
	Use:     "pin <code>",
	Short:   "Pair using a 6-digit PIN",
	Example: `  perchctl pair pin 123456`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		api := newSessionClient()

		fmt.Println("Pairing... confirm the request on the camera.")

		session, err := api.pairPin(args[0])
		if err != nil {
			fmt.Printf("Error: pairing failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Paired.")
		printSession(session)
	},
}

var pairQRCmd = &cobra.Command{
	Use:   "qr <file|->",
	Short: "Pair using a QR payload",
	Long:  `Reads the decoded QR payload from a file, or from stdin when the argument is "-".`,
	Example: `  perchctl pair qr payload.json
  cat payload.json | perchctl pair qr -`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var payload []byte
		var err error

		if args[0] == "-" {
			payload, err = io.ReadAll(os.Stdin)
		} else {
			payload, err = os.ReadFile(args[0])
		}
		if err != nil {
			fmt.Printf("Error reading QR payload: %v\n", err)
			os.Exit(1)
		}

		api := newSessionClient()

		fmt.Println("Pairing... confirm the request on the camera.")

		session, err := api.pairQR(payload)
		if err != nil {
			fmt.Printf("Error: pairing failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Paired.")
		printSession(session)
	},
}

func init() {
	rootCmd.AddCommand(pairCmd)

	pairCmd.AddCommand(pairPinCmd)
	pairCmd.AddCommand(pairQRCmd)
}
