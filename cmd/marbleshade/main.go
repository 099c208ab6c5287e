package main

import "github.com/MeKo-Tech/marbleshade/internal/cmd"

func main() {
	cmd.Execute()
}
