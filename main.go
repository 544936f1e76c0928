package main

import (
	"os"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/app"
)

func main() {
	os.Exit(app.Execute())
}
