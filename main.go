package main

import "photogram-backend/cmd"

func main() {
	cmd.Run()
}
