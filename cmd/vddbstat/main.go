// Command vddbstat renders a column's on-disk block-size history as an
// ASCII graph. It is a read-only diagnostic tool, entirely separate
// from the query surface.
package main

import (
	"bufio"
	"fmt"
	"os"
	"regexp"

	"github.com/ghemawat/stream"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/omerghazali/vddb"
)

func main() {
	var dataDir, table, column, logPath string
	var height int

	cmd := &cobra.Command{
		Use:   "vddbstat --data-dir DIR --table T --column C",
		Short: "Plot a column's on-disk block-size history",
		RunE: func(_ *cobra.Command, _ []string) error {
			if logPath != "" {
				return printLogWindow(logPath)
			}
			if dataDir == "" || table == "" || column == "" {
				return fmt.Errorf("--data-dir, --table and --column are all required")
			}
			db, err := vddb.Open(dataDir)
			if err != nil {
				return err
			}
			sizes, err := db.ColumnBlockSizes(table, column)
			if err != nil {
				return err
			}
			if len(sizes) == 0 {
				fmt.Printf("%s.%s has no blocks yet\n", table, column)
				return nil
			}
			data := make([]float64, len(sizes))
			for i, s := range sizes {
				data[i] = float64(s)
			}
			graph := asciigraph.Plot(data,
				asciigraph.Height(height),
				asciigraph.Caption(fmt.Sprintf("%s.%s block size (bytes) by append order", table, column)),
			)
			fmt.Println(graph)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "database data directory (required unless --log is set)")
	cmd.Flags().StringVar(&table, "table", "", "table name (required unless --log is set)")
	cmd.Flags().StringVar(&column, "column", "", "column name (required unless --log is set)")
	cmd.Flags().IntVar(&height, "height", 10, "graph height in rows")
	cmd.Flags().StringVar(&logPath, "log", "", "print the lines of a vddb log file between a \"created table\" and the next \"dropped table\" event")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printLogWindow prints every line of a vddb log between a "created
// table" event and the next "dropped table" event.
func printLogWindow(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	window, err := grepBetween(lines, "created table", "dropped table")
	if err != nil {
		return err
	}
	for _, line := range window {
		fmt.Println(line)
	}
	return nil
}

// grepBetween returns every line strictly between the first line
// matching start and the next line matching end.
func grepBetween(lines []string, start, end string) ([]string, error) {
	startRe, err := regexp.Compile(start)
	if err != nil {
		return nil, err
	}
	endRe, err := regexp.Compile(end)
	if err != nil {
		return nil, err
	}

	filter := stream.FilterFunc(func(arg stream.Arg) error {
		var passedStart bool
		for s := range arg.In {
			if passedStart {
				if endRe.MatchString(s) {
					break
				}
				arg.Out <- s
				continue
			}
			passedStart = startRe.MatchString(s)
		}
		return nil
	})

	in := make(chan string)
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		errc <- filter(stream.Arg{In: in, Out: out})
	}()
	go func() {
		defer close(in)
		for _, l := range lines {
			in <- l
		}
	}()

	var result []string
	for s := range out {
		result = append(result, s)
	}
	return result, <-errc
}
