// Command navi records a press-and-hold utterance and classifies it with a
// remote or on-device model.
package main

import (
	"fmt"
	"os"

	"github.com/Laudkyle/NaviAudio/cmd/navi/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
