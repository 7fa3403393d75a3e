package main

import "github.com/rudransh-shrivastava/drop-it/internal/client/cmd"

func main() {
	cmd.Execute()
}
