package main

import "github.com/loog-project/prefwatch/cmd"

func main() {
	cmd.Execute()
}
