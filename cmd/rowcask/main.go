// Command rowcask inspects and edits a rowcask store from the shell.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/yonwoo9/go-rowcask"
)

const usage = `usage: rowcask [flags] <command> [args]

commands:
  put <value>      append a row ("-" reads the value from stdin), prints its id
  get <id>         print a row
  del <id>         delete a row
  scan             print every live row
  stats            print row count, size and cache statistics
  check            verify every row
  snapshot <dir>   copy the store into dir

flags:
`

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "rowcask: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	dataDir := flag.String("data", "./data", "Data directory")
	configPath := flag.String("config", "", "YAML config file (optional)")
	cacheCapacity := flag.Int("cache", rowcask.DefaultCacheCapacity, "Number of rows kept in memory")
	maxValueSize := flag.Int("max-value-size", rowcask.DefaultMaxValueSize, "Maximum row size in bytes")
	maxDBSize := flag.Int64("max-db-size", rowcask.DefaultMaxDBSize, "Maximum data log size in bytes")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	ll := &slog.LevelVar{}
	if err := ll.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("invalid -log-level: %w", err)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	cfg := rowcask.DefaultConfig()
	if *configPath != "" {
		if err := loadConfig(*configPath, cfg); err != nil {
			return err
		}
	}
	// 命令行参数优先于配置文件
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cache":
			cfg.CacheCapacity = *cacheCapacity
		case "max-value-size":
			cfg.MaxValueSize = *maxValueSize
		case "max-db-size":
			cfg.MaxDBSize = *maxDBSize
		}
	})
	cfg.Logger = logger

	c, err := rowcask.OpenCache(*dataDir, rowcask.WithConfig(*cfg))
	if err != nil {
		return err
	}
	err = run(c, os.Stdin, os.Stdout, flag.Args())
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	return err
}

func loadConfig(path string, cfg *rowcask.Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}
