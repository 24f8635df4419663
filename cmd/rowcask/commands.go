package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/yonwoo9/go-rowcask"
)

var errUsage = errors.New("invalid usage")

// run executes one command against c, reading values from in and printing
// results to out.
func run(c *rowcask.Cache, in io.Reader, out io.Writer, args []string) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "put":
		if len(args) != 1 {
			return fmt.Errorf("%w: put <value>", errUsage)
		}
		value := []byte(args[0])
		if args[0] == "-" {
			var err error
			if value, err = io.ReadAll(in); err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
		}
		id, err := c.Put(value)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, id)
		return err

	case "get":
		id, err := rowIDArg(cmd, args)
		if err != nil {
			return err
		}
		value, err := c.Get(id)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", value)
		return err

	case "del":
		id, err := rowIDArg(cmd, args)
		if err != nil {
			return err
		}
		return c.Delete(id)

	case "scan":
		it := c.Scan()
		for id, value := range it.All() {
			if _, err := fmt.Fprintf(out, "%d\t%s\n", id, value); err != nil {
				return err
			}
		}
		return it.Err()

	case "stats":
		stats := c.Stats()
		return yaml.NewEncoder(out).Encode(statsOutput{
			Rows:      c.Len(),
			Bytes:     c.Store().Size(),
			Cached:    stats.Size,
			Capacity:  stats.Capacity,
			Hits:      stats.Hits,
			Misses:    stats.Misses,
			Evictions: stats.Evictions,
			HitRatio:  stats.HitRatio(),
		})

	case "check":
		report, err := c.Store().Check()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, report); err != nil {
			return err
		}
		if !report.OK() {
			return fmt.Errorf("%w: rows %v", rowcask.ErrCorruptRecord, report.CorruptRows)
		}
		return nil

	case "snapshot":
		if len(args) != 1 {
			return fmt.Errorf("%w: snapshot <dir>", errUsage)
		}
		return c.Store().Snapshot(args[0])

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

type statsOutput struct {
	Rows      int     `yaml:"rows"`
	Bytes     int64   `yaml:"bytes"`
	Cached    int     `yaml:"cached"`
	Capacity  int     `yaml:"capacity"`
	Hits      uint64  `yaml:"hits"`
	Misses    uint64  `yaml:"misses"`
	Evictions uint64  `yaml:"evictions"`
	HitRatio  float64 `yaml:"hit_ratio"`
}

func rowIDArg(cmd string, args []string) (uint64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: %s <id>", errUsage, cmd)
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: row id %q: %w", errUsage, args[0], err)
	}
	return id, nil
}
