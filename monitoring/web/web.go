// Package web holds the dashboard page served by the monitor.
package web

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// DevEnvVar names the environment variable that, when true, makes the monitor
// serve the page from the source tree so that it can be edited without
// rebuilding.
const DevEnvVar = "CXLTG_MONITOR_DEV"

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the file system the monitor serves "/" from.
func GetAssets() http.FileSystem {
	if dir, ok := sourceDir(); ok {
		log.Printf("monitor: serving pages from %s", dir)
		return http.Dir(dir)
	}

	dist, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		log.Panic(err)
	}

	return http.FS(dist)
}

func sourceDir() (string, bool) {
	dev, err := strconv.ParseBool(os.Getenv(DevEnvVar))
	if err != nil || !dev {
		return "", false
	}

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", false
	}

	return filepath.Join(filepath.Dir(file), "dist"), true
}
