package main

import "github.com/jlgrimes/quarrel-voice/cmd/voice/cmd"

func main() {
	cmd.Execute()
}
