package main

import "github.com/MeKo-Tech/cavegen/internal/cmd"

func main() {
	cmd.Execute()
}
