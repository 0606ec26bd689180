package main

import "github.com/MeKo-Tech/mokugo/cmd/mokugo/cmd"

func main() {
	cmd.Execute()
}
