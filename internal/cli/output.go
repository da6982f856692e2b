package cli

import (
	"encoding/json"
	"fmt"
	"os"
)

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Printf("Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func printSession(session *sessionInfo) {
	if jsonOutput {
		printJSON(session)
		return
	}

	fmt.Printf("Status:            %s\n", session.Status)
	fmt.Printf("Watching:          %v\n", session.IsWatching)
	if session.ConnectedCamera != nil {
		fmt.Printf("Connected camera:  %s (%s)\n", session.ConnectedCamera.Name, session.ConnectedCamera.CameraID)
	}
	if session.ReconnectAttempt > 0 {
		fmt.Printf("Reconnect attempt: %d\n", session.ReconnectAttempt)
	}
	if session.LastError != nil {
		fmt.Printf("Last error:        %s: %s\n", session.LastError.Code, session.LastError.Message)
	}
	fmt.Printf("Cameras visible:   %d\n", len(session.AvailableCameras))
}
