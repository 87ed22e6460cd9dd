package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mistfs/corefs"
	"github.com/mistfs/corefs/block"
	"github.com/mistfs/corefs/fat32"
	"github.com/mistfs/corefs/fixtures"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Usage: "Inspect and build FAT32 images",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "Print the entry a path resolves to (name, size, first cluster); a directory's contents are not listed",
				Action:    lsCommand,
				ArgsUsage: "IMAGE_FILE PATH",
			},
			{
				Name:      "cat",
				Usage:     "Print a file's contents to stdout",
				Action:    catCommand,
				ArgsUsage: "IMAGE_FILE PATH",
			},
			{
				Name:      "mkimage",
				Usage:     "Write a synthetic FAT32 image from a named geometry",
				Action:    mkimageCommand,
				ArgsUsage: "GEOMETRY_NAME OUTPUT_FILE",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func openVolume(imagePath string) (*fat32.Volume, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}
	device := block.NewMemoryDevice(data)
	return fat32.Mount(device, fat32.MountOptions{FATCacheSectors: 16})
}

func lsCommand(context *cli.Context) error {
	if context.Args().Len() < 2 {
		return cli.Exit("usage: corefs ls IMAGE_FILE PATH", 1)
	}
	vol, err := openVolume(context.Args().Get(0))
	if err != nil {
		return err
	}
	defer vol.Close()

	entry, err := vol.Resolve(context.Args().Get(1))
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%d bytes\tcluster %d\n", entry.Name(), entry.Size, entry.FirstCluster)
	return nil
}

func catCommand(context *cli.Context) error {
	if context.Args().Len() < 2 {
		return cli.Exit("usage: corefs cat IMAGE_FILE PATH", 1)
	}
	vol, err := openVolume(context.Args().Get(0))
	if err != nil {
		return err
	}
	defer vol.Close()

	file, err := vol.OpenFile(context.Args().Get(1), corefs.O_RDONLY)
	if err != nil {
		return err
	}
	defer file.Close()

	buf := make([]byte, vol.BytesPerCluster())
	for {
		n, err := file.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		os.Stdout.Write(buf[:n])
	}
}

func mkimageCommand(context *cli.Context) error {
	if context.Args().Len() < 2 {
		return cli.Exit("usage: corefs mkimage GEOMETRY_NAME OUTPUT_FILE", 1)
	}
	geom, err := fixtures.GetGeometry(context.Args().Get(0))
	if err != nil {
		return err
	}

	builder := fixtures.NewBuilder(geom, 8)
	if err := builder.WriteRootDirectory(nil); err != nil {
		return err
	}

	return os.WriteFile(context.Args().Get(1), builder.Device().Bytes(), 0o644)
}
