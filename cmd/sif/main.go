package main

import "github.com/MeKo-Tech/sif/cmd/sif/cmd"

func main() {
	cmd.Execute()
}
