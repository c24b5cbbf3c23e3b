package main

import "github.com/MeKo-Tech/chatocr/cmd/chatocr/cmd"

func main() {
	cmd.Execute()
}
