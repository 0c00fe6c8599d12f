// Command doclearnctl is the operator tool for the doclearn server: it runs
// schema migrations and works the profile moderation queue from a shell.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	root := newRootCmd(openBackend, os.Stdout)

	if err := root.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		// cobra already printed the error
		os.Exit(1)
	}
}
