package main

import (
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/quillblog/quill/app"
)

func main() {
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set maxprocs: %v\n", err)
	}

	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
