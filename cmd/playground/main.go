// Command playground runs focus programs in the interpreter guest.
//
//	playground run program.focus
//	playground run -e '1 + 1'
//	playground repl
//	playground check --module interpreter_bg.wasm
package main

import (
	stderrors "errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !stderrors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
