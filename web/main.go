package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/df07/go-pathtracer/pkg/scene"
	"github.com/df07/go-pathtracer/web/server"
)

func main() {
	port := flag.Int("port", 8080, "Port to serve on")
	staticDir := flag.String("static", "static", "Directory with the browser client")
	flag.Parse()

	if info, err := os.Stat(*staticDir); err != nil || !info.IsDir() {
		log.Printf("Static directory %q not found, only the API and WebSocket are available", *staticDir)
	}

	webServer := server.NewServer(*port).WithStaticDir(*staticDir)

	log.Printf("Path tracer web server, scenes: %s", strings.Join(scene.Names(), ", "))
	log.Printf("Connect to ws://localhost:%d/ws/render?scene=default to stream a render", *port)

	if err := webServer.Start(); err != nil {
		log.Printf("Error starting server: %v", err)
		os.Exit(1)
	}
}
