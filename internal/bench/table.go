package bench

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const tableRule = 63

// WriteTable writes trials as a fixed-width text table:
// algorithm, file size, execution time in seconds, reread flag (0 or 1).
func WriteTable(w io.Writer, trials []Trial) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%-20s %-15s %-20s %s\n", "Algorithm", "File Size", "Execution Time (s)", "Reread")
	fmt.Fprintln(bw, strings.Repeat("=", tableRule))
	for _, t := range trials {
		fmt.Fprintf(bw, "%-20s %-15d %-20.6f %d\n", t.Algorithm, t.FileSize, t.Duration.Seconds(), boolFlag(t.Reread))
	}
	return bw.Flush()
}

// ParseTable reads a table written by WriteTable. Rows with three columns
// (no reread flag) are read as cached trials. Header, rule and malformed
// lines are skipped.
func ParseTable(r io.Reader) ([]Trial, error) {
	var trials []Trial
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 3 && len(fields) != 4 {
			continue
		}
		size, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		secs, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}
		trials = append(trials, Trial{
			Algorithm: fields[0],
			FileSize:  size,
			Duration:  time.Duration(secs * float64(time.Second)),
			Reread:    len(fields) == 4 && fields[3] == "1",
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return trials, nil
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// record is the serialized form of a trial.
type record struct {
	Algorithm string  `json:"algorithm" yaml:"algorithm"`
	FileSize  int     `json:"file_size" yaml:"file_size"`
	Seconds   float64 `json:"execution_time" yaml:"execution_time"`
	Reread    bool    `json:"reread" yaml:"reread"`
}

func records(trials []Trial) []record {
	out := make([]record, len(trials))
	for i, t := range trials {
		out[i] = record{Algorithm: t.Algorithm, FileSize: t.FileSize, Seconds: t.Duration.Seconds(), Reread: t.Reread}
	}
	return out
}

// WriteJSON writes trials as an indented JSON array.
func WriteJSON(w io.Writer, trials []Trial) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records(trials))
}

// WriteYAML writes trials as a YAML sequence.
func WriteYAML(w io.Writer, trials []Trial) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records(trials)); err != nil {
		return err
	}
	return enc.Close()
}

// Point is one (size, time) sample of a series.
type Point struct {
	Size    int
	Seconds float64
}

// Series groups the trials of one reread mode by algorithm, each sorted by
// file size.
func Series(trials []Trial, reread bool) map[string][]Point {
	out := make(map[string][]Point)
	for _, t := range trials {
		if t.Reread != reread {
			continue
		}
		out[t.Algorithm] = append(out[t.Algorithm], Point{Size: t.FileSize, Seconds: t.Duration.Seconds()})
	}
	for _, pts := range out {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Size < pts[j].Size })
	}
	return out
}

// WriteSeries prints each series as "algorithm: size=seconds ...", sorted by
// algorithm name.
func WriteSeries(w io.Writer, series map[string][]Point) error {
	names := make([]string, 0, len(series))
	for n := range series {
		names = append(names, n)
	}
	sort.Strings(names)

	bw := bufio.NewWriter(w)
	for _, n := range names {
		fmt.Fprintf(bw, "%s:", n)
		for _, p := range series[n] {
			fmt.Fprintf(bw, " %d=%.6fs", p.Size, p.Seconds)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
