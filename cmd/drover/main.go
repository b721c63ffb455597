package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitRecordsFailed = 1
	ExitError         = 2
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var recordFailure *RecordFailureError
		if errors.As(err, &recordFailure) {
			os.Exit(ExitRecordsFailed)
		}
		os.Exit(ExitError)
	}
}
