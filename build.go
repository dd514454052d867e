//go:build ignore

// Builds the controller binaries into bin/. Run with: go run build.go [-test]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func main() {
	runTests := flag.Bool("test", false, "Run the test suite before building")
	outputDir := flag.String("out", "bin", "Output directory")
	flag.Parse()

	if *runTests {
		fmt.Println("Running tests")
		if err := run("go", "test", "./..."); err != nil {
			fmt.Printf("Tests failed: %v\n", err)
			os.Exit(1)
		}
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Printf("Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	binaries := []struct {
		name string
		path string
	}{
		{"virtualmotor", "./cmd/virtualmotor"},
		{"simulator", "./cmd/simulator"},
	}

	for _, bin := range binaries {
		outputPath := filepath.Join(*outputDir, bin.name)
		fmt.Printf("Building %s -> %s\n", bin.name, outputPath)

		if err := run("go", "build", "-o", outputPath, bin.path); err != nil {
			fmt.Printf("Error building %s: %v\n", bin.name, err)
			os.Exit(1)
		}
	}

	fmt.Println("All builds completed successfully!")
}
