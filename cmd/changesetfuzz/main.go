// Command changesetfuzz inspects and structurally fuzzes changeset files
// produced by internal/changeset, for differential testing against Apply
// and Invert.
//
// Usage:
//
//	changesetfuzz dump <file>
//	changesetfuzz fuzz <file> <seed> <n>
//
// dump mode walks the changeset and prints one line per record. fuzz mode
// emits n deterministic, structurally well-formed variants of the file
// (seeded by <seed>) as <file>.0000, <file>.0001, ... alongside the input.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/leengari/changetrack/internal/changeset"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "dump":
		if err := dump(os.Args[2]); err != nil {
			fmt.Fprintln(os.Stderr, "changesetfuzz:", err)
			os.Exit(1)
		}
	case "fuzz":
		if len(os.Args) != 5 {
			usage()
			os.Exit(2)
		}
		seed, err := strconv.ParseInt(os.Args[3], 10, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "changesetfuzz: invalid seed:", err)
			os.Exit(2)
		}
		n, err := strconv.Atoi(os.Args[4])
		if err != nil {
			fmt.Fprintln(os.Stderr, "changesetfuzz: invalid count:", err)
			os.Exit(2)
		}
		if err := fuzz(os.Args[2], seed, n); err != nil {
			fmt.Fprintln(os.Stderr, "changesetfuzz:", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: changesetfuzz dump <file>")
	fmt.Fprintln(os.Stderr, "       changesetfuzz fuzz <file> <seed> <n>")
}

func dump(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	it := changeset.NewIterator(data)
	for it.Next() {
		op, err := it.Op()
		if err != nil {
			return err
		}
		fmt.Printf("%-8s table=%s cols=%d\n", op, it.TableName(), it.NCol())
	}
	if it.State() == changeset.StateCorrupt {
		return it.Err()
	}
	return nil
}

func fuzz(path string, seed int64, n int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	variants, err := changeset.Fuzz(data, seed, n)
	if err != nil {
		return err
	}

	for i, v := range variants {
		outPath := fmt.Sprintf("%s.%04d", path, i)
		if err := os.WriteFile(outPath, v, 0644); err != nil {
			return err
		}
		fmt.Println(outPath)
	}
	return nil
}
