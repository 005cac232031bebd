package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/userportal/internal/client/cli"
)

func main() {

	cmd := cli.NewRootCommand(os.Stdin, os.Stdout)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

}
