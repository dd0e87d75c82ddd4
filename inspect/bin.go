package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	. "github.com/arcova/sideload"
	"github.com/cespare/xxhash/v2"
	"github.com/pkujhd/goloader"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Usage = "optional module payload toolkit"
	app.Name = "Inspect"
	app.Description = "inspect module payloads and maintain the payload cache"
	app.Args = true
	app.Commands = []*cli.Command{
		{Name: "symbols",
			Action: symbols,
			Usage:  "display exported symbols of object payloads",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Usage: "package path or default main"},
			},
			Args: true,
		},
		{Name: "check",
			Action: check,
			Usage:  "load script payloads and report resolution of a symbol",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "symbol to resolve after load"},
			},
			Args: true,
		},
		{Name: "sum",
			Action: sum,
			Usage:  "print the xxh64 digest of payloads, for the manifest checksum field",
			Args:   true,
		},
		{Name: "cache",
			Usage: "payload cache maintenance",
			Subcommands: []*cli.Command{
				{Name: "list", Action: cacheList, Usage: "list cached payload files", Flags: cacheFlags, Args: true},
				{Name: "clean", Action: cacheClean, Usage: "remove cached payload files", Flags: cacheFlags, Args: true},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("failure %s", err)
	}
}

var cacheFlags = []cli.Flag{
	&cli.StringFlag{Name: "module", Aliases: []string{"m"}, Usage: "only files of this module"},
}

func symbols(ctx *cli.Context) (err error) {
	pkg := ctx.String("pkg")
	if pkg == "" {
		pkg = "main"
	}
	for _, s := range ctx.Args().Slice() {
		var names []string
		if names, err = goloader.Parse(s, pkg); err != nil {
			return
		}
		for _, n := range names {
			fmt.Println(n)
		}
	}
	return
}

func check(ctx *cli.Context) (err error) {
	for _, s := range ctx.Args().Slice() {
		var b []byte
		if b, err = os.ReadFile(s); err != nil {
			return
		}
		var src *ScriptSource
		if src, err = NewScriptSource(filepath.Base(s), b); err != nil {
			return
		}
		log.Printf("loaded %s", s)
		if symbol := ctx.String("symbol"); symbol != "" {
			if _, ok := src.Resolve(symbol); !ok {
				return fmt.Errorf("symbol %s not defined by %s", symbol, s)
			}
			log.Printf("resolved %s", symbol)
		}
	}
	return
}

func sum(ctx *cli.Context) (err error) {
	for _, s := range ctx.Args().Slice() {
		var f *os.File
		if f, err = os.Open(s); err != nil {
			return
		}
		h := xxhash.New()
		if _, err = io.Copy(h, f); err != nil {
			_ = f.Close()
			return
		}
		_ = f.Close()
		fmt.Printf("%x  %s\n", h.Sum64(), s)
	}
	return
}

func cacheList(ctx *cli.Context) error {
	return eachCached(ctx, func(path string, size int64) error {
		fmt.Printf("%10d  %s\n", size, path)
		return nil
	})
}

func cacheClean(ctx *cli.Context) error {
	return eachCached(ctx, func(path string, _ int64) error {
		log.Printf("removing %s", path)
		return os.Remove(path)
	})
}

func eachCached(ctx *cli.Context, f func(path string, size int64) error) error {
	dir := ctx.Args().First()
	if dir == "" {
		return fmt.Errorf("missing cache directory")
	}
	module := ctx.String("module")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if module != "" && !matchesModule(e.Name(), module) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		if err = f(filepath.Join(dir, e.Name()), info.Size()); err != nil {
			return err
		}
	}
	return nil
}

func matchesModule(name, module string) bool {
	return len(name) > len(module) && name[:len(module)+1] == module+"."
}
