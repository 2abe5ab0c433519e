// Package osutils holds small platform helpers: privilege checks and
// handing files to the desktop.
package osutils

import (
	"log"
	"os/exec"
)

// start launches cmd without waiting and reaps it in the background.
func start(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("osutils: %s exited: %v", cmd.Path, err)
		}
	}()
	return nil
}
