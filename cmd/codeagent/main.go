package main

import wrapper "codeagent-wrapper/internal/app"

func main() {
	wrapper.Run()
}
