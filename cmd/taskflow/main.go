// cmd/taskflow/main.go
package main

import (
	"os"

	"github.com/fawad-mazhar/taskflow/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
