package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/replkit/goscript"
	"github.com/chazu/replkit/reference"
)

var imageIntrospect bool

var imageCmd = &cobra.Command{
	Use:   "image <import-path>...",
	Short: "Write reference images for packages",
	Long: `Write a reference image for each package into the configured image directory.
Packages in the interpreter's standard library table are described from it;
others (or all, with --introspect) are loaded with the go toolchain.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImage,
}

func init() {
	imageCmd.Flags().BoolVar(&imageIntrospect, "introspect", false, "always load packages with the go toolchain")
}

func runImage(_ *cobra.Command, args []string) error {
	dir := cfg.ImageDirPath()
	for _, path := range args {
		out := reference.ImagePath(dir, path)
		if err := writeImage(path, out); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", out)
	}
	return nil
}

func writeImage(importPath, out string) error {
	if !imageIntrospect {
		if m := goscript.FindModule(goscript.StdlibModules(), importPath); m != nil {
			return reference.WriteImage(m, out)
		}
	}
	md, err := reference.Introspect(importPath)
	if err != nil {
		return err
	}
	return reference.WriteMetadataImage(md, out)
}
