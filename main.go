package main

import "lawrag/cmd"

func main() {
	cmd.Execute()
}
