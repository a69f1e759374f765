package main

import (
	"evpilot/core"
	"log"
)

func main() {

	system, err := core.NewSystem()
	if err != nil {
		log.Println("system initialization failed", err)
		return
	}
	system.Start()

}
