package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var root = &cobra.Command{Use: "docchat"}
	root.AddCommand(serveCMD())
	_ = root.Execute()
}
